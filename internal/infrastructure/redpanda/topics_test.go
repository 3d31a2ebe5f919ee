package redpanda

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kerr"
)

func TestTopicExistsMatchesBrokerError(t *testing.T) {
	// The broker reports code 36; its message carries explanatory text, so a
	// string compare against the error name would miss it and turn every
	// restart into a declaration failure.
	brokerErr := kerr.ErrorForCode(36)
	assert.NotEqual(t, "TOPIC_ALREADY_EXISTS", brokerErr.Error())
	assert.True(t, topicExists(brokerErr))
}

func TestTopicExistsIgnoresOtherErrors(t *testing.T) {
	assert.False(t, topicExists(errors.New("TOPIC_ALREADY_EXISTS")))
	assert.False(t, topicExists(kerr.ErrorForCode(41))) // NOT_CONTROLLER
	assert.False(t, topicExists(nil))
}

func TestDefaultTopicConfigs(t *testing.T) {
	configs := DefaultTopicConfigs()

	names := make([]string, len(configs))
	for i, cfg := range configs {
		names[i] = cfg.Name
	}
	assert.Equal(t, []string{TopicPrescriptionEvents, TopicDeadLetter}, names)
}
