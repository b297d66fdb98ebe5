package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{raw: "", want: nil},
		{raw: "broker:9092", want: []string{"broker:9092"}},
		{raw: " b1:9092, b2:9092 ,,b3:9092 ", want: []string{"b1:9092", "b2:9092", "b3:9092"}},
		{raw: " , ", want: nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseBrokers(tt.raw), "raw %q", tt.raw)
	}
}

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	producer, err := initKafkaProducer(nil, testLogger())

	require.NoError(t, err)
	assert.Nil(t, producer)
}

func TestInitKafkaProducer_InvalidBrokers(t *testing.T) {
	producer, err := initKafkaProducer([]string{"invalid-broker:9999"}, testLogger())

	require.Error(t, err)
	assert.Nil(t, producer)
}

func TestStartPaymentConsumer_DisabledWithoutBrokers(t *testing.T) {
	consumer, err := startPaymentConsumer(context.Background(), DefaultConfig(), nil, nil, testLogger())

	require.NoError(t, err)
	assert.Nil(t, consumer)
}

func TestCloseHelpers_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		closeKafka(nil, testLogger())
		stopConsumer(nil, testLogger())
	})
}
