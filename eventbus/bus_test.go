package eventbus

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishSubscribe_DeliversInOrder(t *testing.T) {
	b := New(10)
	var got []string
	b.Subscribe("links.added", func(m Message) {
		got = append(got, m.Data.(string))
	})

	b.Publish("links.added", "a", "test")
	b.Publish("links.added", "b", "test")

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestPublish_DeliversToMultipleSubscribersInSubscriptionOrder(t *testing.T) {
	b := New(10)
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		b.Subscribe("links.added", func(m Message) { order = append(order, i) })
	}

	b.Publish("links.added", "x", "test")

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestUnsubscribe_PreservesOrderOfRemainingSubscribers(t *testing.T) {
	b := New(10)
	var order []int
	var subs []Subscription
	for i := 0; i < 4; i++ {
		i := i
		subs = append(subs, b.Subscribe("x", func(m Message) { order = append(order, i) }))
	}

	b.Unsubscribe(subs[1])
	b.Publish("x", nil, "")

	assert.Equal(t, []int{0, 2, 3}, order)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	b := New(10)
	var count int32
	sub := b.Subscribe("x", func(m Message) { atomic.AddInt32(&count, 1) })

	b.Publish("x", nil, "")
	b.Unsubscribe(sub)
	b.Publish("x", nil, "")

	assert.EqualValues(t, 1, count)
}

func TestPublish_RecoversPanickingHandler(t *testing.T) {
	b := New(10)
	var secondCalled bool
	b.Subscribe("x", func(m Message) { panic("boom") })
	b.Subscribe("x", func(m Message) { secondCalled = true })

	assert.NotPanics(t, func() { b.Publish("x", nil, "") })
	assert.True(t, secondCalled)
}

func TestHistory_BoundedAndOrdered(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		b.Publish("x", i, "")
	}
	hist := b.History("x", 0)
	require := []int{2, 3, 4}
	assert.Len(t, hist, 3)
	for i, m := range hist {
		assert.Equal(t, require[i], m.Data)
	}
}

func TestSubscriberCountAndListChannels(t *testing.T) {
	b := New(10)
	b.Subscribe("a", func(Message) {})
	b.Subscribe("a", func(Message) {})
	b.Subscribe("b", func(Message) {})

	assert.Equal(t, 2, b.SubscriberCount("a"))
	assert.ElementsMatch(t, []string{"a", "b"}, b.ListChannels())
}
