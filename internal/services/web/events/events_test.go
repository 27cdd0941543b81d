package events

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (c *capturePublisher) PublishMsg(msg *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func TestNewValidatesInput(t *testing.T) {
	_, err := New("", "u1", time.Now(), nil)
	require.Error(t, err)
	_, err = New(TypeUserSignedUp, " ", time.Now(), nil)
	require.Error(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	event, err := New(TypeUserSignedUp, "u1", at, map[string]string{"provider": "password"})
	require.NoError(t, err)
	assert.Len(t, event.ID, 26)
	assert.Equal(t, time.UTC, event.OccurredAt.Location())
}

func TestNATSPublisherPublishesJSONOnTypedSubject(t *testing.T) {
	capture := &capturePublisher{}
	publisher := newNATSPublisher(capture, "")
	event, err := New(TypeOnboardingCompleted, "u1", time.Now(), nil)
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(context.Background(), event))

	require.Len(t, capture.msgs, 1)
	msg := capture.msgs[0]
	assert.Equal(t, "kumia.onboarding.onboarding.completed", msg.Subject)
	assert.Equal(t, event.ID, msg.Header.Get("Kumia-Event-Id"))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, event.UserID, decoded.UserID)
	assert.Equal(t, TypeOnboardingCompleted, decoded.Type)
}

func TestNATSPublisherTrimsPrefix(t *testing.T) {
	publisher := newNATSPublisher(&capturePublisher{}, " tenant.events. ")
	assert.Equal(t, "tenant.events.user.signed_in", publisher.Subject(TypeUserSignedIn))
}

func TestNATSPublisherSurfacesErrors(t *testing.T) {
	publisher := newNATSPublisher(&capturePublisher{err: errors.New("down")}, "")
	event, err := New(TypeUserSignedIn, "u1", time.Now(), nil)
	require.NoError(t, err)
	assert.ErrorContains(t, publisher.Publish(context.Background(), event), "down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, newNATSPublisher(&capturePublisher{}, "").Publish(ctx, event))

	var nilPublisher *NATSPublisher
	assert.Error(t, nilPublisher.Publish(context.Background(), event))
}

func TestConnectNATSRequiresURL(t *testing.T) {
	_, err := ConnectNATS(" ", "test", "")
	require.Error(t, err)
}

func TestConnectNATSRoundTrip(t *testing.T) {
	url := os.Getenv("KUMIA_TEST_NATS_URL")
	if url == "" {
		t.Skip("KUMIA_TEST_NATS_URL not set")
	}
	publisher, err := ConnectNATS(url, "onboarding-test", "test.onboarding")
	require.NoError(t, err)
	defer publisher.Close()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()
	sub, err := nc.SubscribeSync("test.onboarding.>")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	event, err := New(TypeUserSignedUp, "u1", time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(context.Background(), event))

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "test.onboarding.user.signed_up", msg.Subject)
}

func TestNoopPublisher(t *testing.T) {
	var publisher Publisher = Noop{}
	assert.NoError(t, publisher.Publish(context.Background(), Event{}))
}
