package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/captain-yun7/facefalcon-sub000/config"
	fr "github.com/captain-yun7/facefalcon-sub000/internal/integrations/facerecognition"
	"github.com/captain-yun7/facefalcon-sub000/internal/integrations/provider"
)

type published struct {
	topic   string
	payload any
	retain  bool
}

type fakeClient struct {
	connected bool
	err       error
	messages  []published
}

func (f *fakeClient) PublishMessage(topic string, payload any, retain bool) error {
	f.messages = append(f.messages, published{topic, payload, retain})
	return f.err
}

func (f *fakeClient) IsConnected() bool { return f.connected }

func TestPublisher_Topics(t *testing.T) {
	client := &fakeClient{connected: true}
	p := newPublisher(client, "facefalcon")

	p.PublishStatus(fr.HealthStatus{Current: fr.ModeHybrid})
	p.PublishFallback(provider.FallbackEvent{Operation: fr.OpCompareFaces, From: fr.ProviderLocal, To: fr.ProviderCloud})
	p.Close()

	if len(client.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(client.messages))
	}
	if m := client.messages[0]; m.topic != "facefalcon/status" || !m.retain {
		t.Errorf("status message = %+v", m)
	}
	if m := client.messages[1]; m.topic != "facefalcon/fallback" || m.retain {
		t.Errorf("fallback message = %+v", m)
	}
}

func TestPublisher_Disconnected(t *testing.T) {
	client := &fakeClient{connected: false}
	p := newPublisher(client, "x")
	p.PublishStatus(fr.HealthStatus{})
	p.Close()
	if len(client.messages) != 0 {
		t.Error("nothing should be published while disconnected")
	}
}

func TestPublisher_ErrorIsNotFatal(t *testing.T) {
	client := &fakeClient{connected: true, err: errors.New("broker gone")}
	p := newPublisher(client, "x")
	p.PublishFallback(provider.FallbackEvent{})
	p.Close()
	if len(client.messages) != 1 {
		t.Error("publish should have been attempted")
	}
}

type fakeUpdater struct {
	got *provider.ConfigUpdate
}

func (f *fakeUpdater) UpdateConfig(u provider.ConfigUpdate) fr.Result[provider.Config] {
	f.got = &u
	if u.Mode != nil && !u.Mode.Valid() {
		return fr.Fail[provider.Config](errors.New("invalid mode"))
	}
	return fr.Ok(provider.Config{Mode: *u.Mode})
}

func TestConfigHandler(t *testing.T) {
	u := &fakeUpdater{}
	handler := ConfigHandler(u)

	handler("facefalcon/config/set", []byte(`{"provider":"cloud","fallbackEnabled":false}`))
	if u.got == nil || u.got.Mode == nil || *u.got.Mode != fr.ModeCloud {
		t.Fatalf("update not applied: %+v", u.got)
	}
	if u.got.FallbackEnabled == nil || *u.got.FallbackEnabled {
		t.Errorf("fallbackEnabled not decoded: %+v", u.got)
	}
	if u.got.Primary != nil {
		t.Error("absent fields must stay nil")
	}

	u.got = nil
	handler("facefalcon/config/set", []byte(`not json`))
	if u.got != nil {
		t.Error("invalid payload must not reach the updater")
	}
}

func TestEncodePayload(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"online", "online"},
		{[]byte("raw"), "raw"},
		{42, "42"},
		{true, "true"},
		{map[string]int{"a": 1}, `{"a":1}`},
	}
	for _, tt := range tests {
		got, err := encodePayload(tt.in)
		if err != nil {
			t.Fatalf("encodePayload(%v) failed: %v", tt.in, err)
		}
		if string(got) != tt.want {
			t.Errorf("encodePayload(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestClientTopic(t *testing.T) {
	c := NewClient(config.MQTTConfig{TopicPrefix: "facefalcon"})
	if got := c.Topic("config/set"); got != "facefalcon/config/set" {
		t.Errorf("Topic = %s", got)
	}
	if c.IsConnected() {
		t.Error("new client must not be connected")
	}
	if err := c.Start(); err != nil {
		t.Errorf("disabled client should start without error: %v", err)
	}
}

// blockingClient hält jeden Publish fest, bis release geschlossen wird
type blockingClient struct {
	release chan struct{}
}

func (b *blockingClient) PublishMessage(topic string, payload any, retain bool) error {
	<-b.release
	return nil
}

func (b *blockingClient) IsConnected() bool { return true }

type stubBackend struct {
	name    fr.ProviderType
	healthy bool
}

func (s stubBackend) Name() fr.ProviderType { return s.name }

func (s stubBackend) IsHealthy(ctx context.Context) bool { return s.healthy }

func (s stubBackend) CompareFaces(ctx context.Context, source, target []byte, threshold float64) (*fr.FaceComparisonResult, error) {
	return &fr.FaceComparisonResult{Similarity: 80, Provider: s.name}, nil
}

func (s stubBackend) DetectFaces(ctx context.Context, image []byte) ([]fr.FaceDetails, error) {
	return []fr.FaceDetails{}, nil
}

func TestPublisher_StalledBrokerDoesNotBlockRequests(t *testing.T) {
	client := &blockingClient{release: make(chan struct{})}
	p := newPublisher(client, "facefalcon")
	t.Cleanup(func() {
		close(client.release)
		p.Close()
	})

	hybrid, err := provider.NewHybridClient(provider.Config{
		Mode:             fr.ModeHybrid,
		Primary:          fr.ProviderLocal,
		FallbackEnabled:  true,
		LocalTimeoutMS:   1000,
		BatchConcurrency: 1,
	}, stubBackend{name: fr.ProviderCloud, healthy: true}, stubBackend{name: fr.ProviderLocal, healthy: false})
	if err != nil {
		t.Fatalf("NewHybridClient failed: %v", err)
	}
	hybrid.SetEventSink(p)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Fallback-Ereignis, danach Statusereignisse über die Queue hinaus
		if res := hybrid.CompareFaces(context.Background(), []byte{1}, []byte{2}, 0); !res.Success {
			t.Errorf("CompareFaces failed: %v", res.Err())
		}
		for i := 0; i < publishQueueSize+10; i++ {
			hybrid.GetProviderStatus(context.Background())
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("requests blocked on the MQTT publisher")
	}
}
