package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClick struct {
	href      string
	prevented atomic.Int32
}

func (c *fakeClick) PreventDefault() { c.prevented.Add(1) }
func (c *fakeClick) Href() string    { return c.href }

func chanNavigator() (Navigator, <-chan string) {
	ch := make(chan string, 8)
	return NavigatorFunc(func(url string) { ch <- url }), ch
}

func expectNavigation(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatalf("navigation to %s did not happen", want)
	}
}

func expectNoNavigation(t *testing.T, ch <-chan string) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected navigation to %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLinkClickHandler_DefaultDelay(t *testing.T) {
	rec := &recorder{}
	clock := clockwork.NewFakeClock()
	d, err := New(WithClock(clock), WithInitialClients(newAnalytics("ga", rec), newErrorClient("sentry", rec)))
	require.NoError(t, err)

	nav, navigated := chanNavigator()
	props := Properties{"campaign": "fall"}
	handler := d.LinkClickHandler("outbound", props, nav)

	click := &fakeClick{href: "https://example.com/docs"}
	navigation, err := handler(context.Background(), click)
	require.NoError(t, err)
	require.NotNil(t, navigation)
	assert.Equal(t, "https://example.com/docs", navigation.URL)

	assert.Equal(t, int32(1), click.prevented.Load())
	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "event", calls[0].op)
	assert.Equal(t, "outbound", calls[0].arg)
	assert.Equal(t, props, calls[0].props)

	clock.Advance(DefaultRedirectDelay - time.Millisecond)
	expectNoNavigation(t, navigated)

	clock.Advance(time.Millisecond)
	expectNavigation(t, navigated, "https://example.com/docs")
}

func TestLinkClickHandler_CustomDelayAndTargets(t *testing.T) {
	rec := &recorder{}
	clock := clockwork.NewFakeClock()
	d, err := New(WithClock(clock), WithInitialClients(newAnalytics("ga", rec), newAnalytics("mixpanel", rec)))
	require.NoError(t, err)

	nav, navigated := chanNavigator()
	handler := d.LinkClickHandler("outbound", nil, nav, WithRedirectDelay(time.Second), LinkTo("mixpanel"))

	_, err = handler(context.Background(), &fakeClick{href: "/pricing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mixpanel:event"}, rec.order())

	clock.Advance(DefaultRedirectDelay)
	expectNoNavigation(t, navigated)

	clock.Advance(time.Second)
	expectNavigation(t, navigated, "/pricing")
}

func TestLinkClickHandler_EmptyTargetsStillNavigates(t *testing.T) {
	rec := &recorder{}
	clock := clockwork.NewFakeClock()
	d, err := New(WithClock(clock), WithInitialClients(newAnalytics("ga", rec)))
	require.NoError(t, err)

	nav, navigated := chanNavigator()
	handler := d.LinkClickHandler("outbound", nil, nav, LinkTo())

	_, err = handler(context.Background(), &fakeClick{href: "/a"})
	require.NoError(t, err)
	assert.Empty(t, rec.snapshot())

	clock.Advance(DefaultRedirectDelay)
	expectNavigation(t, navigated, "/a")
}

func TestLinkClickHandler_SendFailureSkipsNavigation(t *testing.T) {
	rec := &recorder{}
	failing := newAnalytics("ga", rec)
	failing.err = errors.New("offline")
	clock := clockwork.NewFakeClock()
	d, err := New(WithClock(clock), WithInitialClients(failing))
	require.NoError(t, err)

	nav, navigated := chanNavigator()
	click := &fakeClick{href: "/a"}
	navigation, err := d.LinkClickHandler("outbound", nil, nav)(context.Background(), click)

	assert.Nil(t, navigation)
	assert.ErrorIs(t, err, failing.err)
	assert.Equal(t, int32(1), click.prevented.Load())

	clock.Advance(time.Minute)
	expectNoNavigation(t, navigated)
}

func TestLinkClickHandler_RepeatedClicksAreIndependent(t *testing.T) {
	rec := &recorder{}
	clock := clockwork.NewFakeClock()
	d, err := New(WithClock(clock), WithInitialClients(newAnalytics("ga", rec)))
	require.NoError(t, err)

	nav, navigated := chanNavigator()
	handler := d.LinkClickHandler("outbound", nil, nav)

	_, err = handler(context.Background(), &fakeClick{href: "/first"})
	require.NoError(t, err)
	clock.Advance(100 * time.Millisecond)
	_, err = handler(context.Background(), &fakeClick{href: "/second"})
	require.NoError(t, err)

	assert.Len(t, rec.snapshot(), 2)

	clock.Advance(100 * time.Millisecond)
	expectNavigation(t, navigated, "/first")
	clock.Advance(100 * time.Millisecond)
	expectNavigation(t, navigated, "/second")
}

func TestNavigation_Stop(t *testing.T) {
	rec := &recorder{}
	clock := clockwork.NewFakeClock()
	d, err := New(WithClock(clock), WithInitialClients(newAnalytics("ga", rec)))
	require.NoError(t, err)

	nav, navigated := chanNavigator()
	navigation, err := d.LinkClickHandler("outbound", nil, nav)(context.Background(), &fakeClick{href: "/a"})
	require.NoError(t, err)

	assert.True(t, navigation.Stop())
	assert.False(t, navigation.Stop())

	clock.Advance(time.Second)
	expectNoNavigation(t, navigated)
}
