package events

import (
	"testing"

	"jamesfarrell.me/video-mcq/internal/storage/models"
)

func TestHubDeliversToVideoSubscribers(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("v1")
	defer cancel()
	other, cancelOther := hub.Subscribe("v2")
	defer cancelOther()

	hub.Publish(StatusEvent{VideoID: "v1", Status: models.StatusTranscribing})

	select {
	case ev := <-ch:
		if ev.Status != models.StatusTranscribing || ev.At.IsZero() {
			t.Errorf("got event %+v", ev)
		}
	default:
		t.Fatal("subscriber did not receive event")
	}

	select {
	case ev := <-other:
		t.Errorf("subscriber of v2 received %+v", ev)
	default:
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("v1")
	defer cancel()

	for i := 0; i < subscriberBuffer*2; i++ {
		hub.Publish(StatusEvent{VideoID: "v1", Status: models.StatusGenerating})
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("v1")
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}
	hub.Publish(StatusEvent{VideoID: "v1"})
	if len(hub.subs) != 0 {
		t.Errorf("hub kept %d subscriber sets", len(hub.subs))
	}
}
