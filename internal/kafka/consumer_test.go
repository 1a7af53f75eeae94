package kafka

import (
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/wattflow/backend/internal/utils"
)

func newBareConsumer() *Consumer {
	return &Consumer{
		logger:         utils.NewNopLogger(),
		handlers:       make(map[string][]MessageHandler),
		stopChannel:    make(chan struct{}),
		runningChannel: make(chan struct{}),
	}
}

func topicMessage(topic string, value []byte) *kafka.Message {
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic},
		Value:          value,
	}
}

func TestConsumerProcessMessageDispatch(t *testing.T) {
	c := newBareConsumer()

	var got []string
	c.RegisterHandler("device-notifications", func(msg *kafka.Message) error {
		got = append(got, "first:"+string(msg.Value))
		return nil
	})
	c.RegisterHandler("device-notifications", func(msg *kafka.Message) error {
		got = append(got, "second:"+string(msg.Value))
		return nil
	})

	c.processMessage(topicMessage("device-notifications", []byte("x")))
	assert.Equal(t, []string{"first:x", "second:x"}, got)

	// Messages for unregistered topics are dropped
	c.processMessage(topicMessage("mail-jobs", []byte("y")))
	assert.Len(t, got, 2)

	// A failing handler without a DLQ producer is logged and dropped
	c.RegisterHandler("alert-jobs", func(*kafka.Message) error {
		return errors.New("boom")
	})
	c.processMessage(topicMessage("alert-jobs", []byte("z")))
}

func TestConsumerStopWithoutStartReturns(t *testing.T) {
	c := newBareConsumer()

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a consumer that never started")
	}
}

func TestConsumerStopWaitsForLoopExit(t *testing.T) {
	c := newBareConsumer()
	c.isRunning.Store(true)

	loopExited := make(chan struct{})
	go func() {
		<-c.stopChannel
		c.isRunning.Store(false)
		close(loopExited)
		close(c.runningChannel)
	}()

	c.Stop()

	select {
	case <-loopExited:
	case <-time.After(time.Second):
		t.Fatal("Stop returned before the loop exited")
	}
	assert.False(t, c.isRunning.Load())
}
