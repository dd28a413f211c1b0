package broker

import "testing"

func TestDLQTopicDefaultSuffix(t *testing.T) {
	c := &Config{}
	if got := c.DLQTopic("capture"); got != "capture.dlq" {
		t.Fatalf("expected capture.dlq, got %s", got)
	}
}

func TestDLQTopicCustomSuffix(t *testing.T) {
	c := &Config{DLQSuffix: "-dead"}
	if got := c.DLQTopic("capture"); got != "capture-dead" {
		t.Fatalf("expected capture-dead, got %s", got)
	}
}

func TestMaxRetriesDefault(t *testing.T) {
	c := &Config{}
	if got := c.maxRetries(); got != MaxRetriesDefault {
		t.Fatalf("expected default %d, got %d", MaxRetriesDefault, got)
	}
}

func TestMaxRetriesConfigured(t *testing.T) {
	c := &Config{MaxRetries: 7}
	if got := c.maxRetries(); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}
