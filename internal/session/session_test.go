package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/session"
)

func TestSubscriptions_DefaultNone(t *testing.T) {
	var s session.Subscriptions
	assert.False(t, s.IsSubscribedToTighteningResult())
	assert.Equal(t, 0, s.ActiveCount())
	assert.False(t, s.HasAny())
}

func TestSubscriptions_SubscribeIdempotent(t *testing.T) {
	var s session.Subscriptions
	s.SubscribeTighteningResult()
	s.SubscribeTighteningResult()

	assert.True(t, s.IsSubscribedToTighteningResult())
	assert.Equal(t, 1, s.ActiveCount())
}

func TestSubscriptions_MultipleAndUnsubscribe(t *testing.T) {
	var s session.Subscriptions
	s.SubscribeTighteningResult()
	s.SubscribePsetSelection()
	assert.Equal(t, 2, s.ActiveCount())

	s.UnsubscribeTighteningResult()
	assert.False(t, s.IsSubscribedToTighteningResult())
	assert.Equal(t, 1, s.ActiveCount())
}

func TestSession_LifecycleHappyPath(t *testing.T) {
	now := time.Unix(1000, 0)
	s := session.New()
	assert.Equal(t, session.KindDisconnected, s.Kind())

	require.NoError(t, s.Connect("127.0.0.1:9000", now))
	assert.Equal(t, session.KindConnected, s.Kind())
	assert.Equal(t, "127.0.0.1:9000", s.Addr())

	require.NoError(t, s.Authenticate(now))
	assert.Equal(t, session.KindReady, s.Kind())
}

func TestSession_IllegalTransitionsRejected(t *testing.T) {
	now := time.Unix(1000, 0)
	s := session.New()

	err := s.Authenticate(now)
	require.Error(t, err)

	err = s.UpdateKeepAlive(now)
	require.Error(t, err)

	require.NoError(t, s.Connect("addr", now))
	err = s.Connect("addr2", now)
	require.Error(t, err)
}

func TestSession_KeepAliveAndTimeout(t *testing.T) {
	t0 := time.Unix(1000, 0)
	s := session.New()
	require.NoError(t, s.Connect("addr", t0))
	require.NoError(t, s.Authenticate(t0))

	assert.False(t, s.IsTimedOut(t0.Add(5*time.Second), 10*time.Second))
	assert.True(t, s.IsTimedOut(t0.Add(15*time.Second), 10*time.Second))

	require.NoError(t, s.UpdateKeepAlive(t0.Add(5*time.Second)))
	assert.False(t, s.IsTimedOut(t0.Add(12*time.Second), 10*time.Second))
}

func TestSession_IsTimedOutFalseOutsideReady(t *testing.T) {
	s := session.New()
	assert.False(t, s.IsTimedOut(time.Unix(9999, 0), 0))
}

func TestSession_DisconnectResetsSubscriptions(t *testing.T) {
	now := time.Unix(1000, 0)
	s := session.New()
	require.NoError(t, s.Connect("addr", now))
	require.NoError(t, s.Authenticate(now))
	s.Subscriptions().SubscribeTighteningResult()

	s.Disconnect()
	assert.Equal(t, session.KindDisconnected, s.Kind())

	require.NoError(t, s.Connect("addr2", now))
	require.NoError(t, s.Authenticate(now))
	assert.False(t, s.Subscriptions().IsSubscribedToTighteningResult())
}
