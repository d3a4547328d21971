package core

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	"trackrelay/internal/chat"
)

var errMockTransport = errors.New("mock transport failure")

type frontendCall struct {
	method    string
	chatID    string
	messageID string
	text      string
	audio     chat.AudioUpload
	audioData string
}

// mockFrontend records every chat call in order.
type mockFrontend struct {
	mu     sync.Mutex
	calls  []frontendCall
	nextID int

	failSend   bool
	failEdit   bool
	failDelete bool
	failAudio  bool

	// onAudio runs while the upload is in progress.
	onAudio func(audio chat.AudioUpload)

	startErr error
	messages []*chat.Message
}

func (m *mockFrontend) record(call frontendCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockFrontend) Start(_ context.Context) error {
	return m.startErr
}

func (m *mockFrontend) Listen(_ context.Context, handler func(*chat.Message)) error {
	for _, msg := range m.messages {
		handler(msg)
	}
	return nil
}

func (m *mockFrontend) SendText(_ context.Context, chatID, text string) (string, error) {
	m.record(frontendCall{method: "SendText", chatID: chatID, text: text})
	if m.failSend {
		return "", errMockTransport
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return strconv.Itoa(m.nextID), nil
}

func (m *mockFrontend) EditMessage(_ context.Context, chatID, messageID, text string) error {
	m.record(frontendCall{method: "EditMessage", chatID: chatID, messageID: messageID, text: text})
	if m.failEdit {
		return errMockTransport
	}
	return nil
}

func (m *mockFrontend) DeleteMessage(_ context.Context, chatID, messageID string) error {
	m.record(frontendCall{method: "DeleteMessage", chatID: chatID, messageID: messageID})
	if m.failDelete {
		return errMockTransport
	}
	return nil
}

func (m *mockFrontend) SendAudio(_ context.Context, chatID string, audio chat.AudioUpload) (string, error) {
	if m.onAudio != nil {
		m.onAudio(audio)
	}

	var data []byte
	if audio.Data != nil {
		data, _ = io.ReadAll(audio.Data)
	}
	m.record(frontendCall{method: "SendAudio", chatID: chatID, audio: audio, audioData: string(data)})

	if m.failAudio {
		return "", errMockTransport
	}
	return "audio", nil
}

func (m *mockFrontend) snapshot() []frontendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]frontendCall(nil), m.calls...)
}

func (m *mockFrontend) methods() []string {
	calls := m.snapshot()
	methods := make([]string, len(calls))
	for i, c := range calls {
		methods[i] = c.method
	}
	return methods
}

// mockMonitor records request outcomes.
type mockMonitor struct {
	mu         sync.Mutex
	started    int
	outcomes   []string
	deliveries []string
	ready      []bool
}

func (m *mockMonitor) RequestStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *mockMonitor) RequestFinished(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockMonitor) RecordDelivery(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, outcome)
}

func (m *mockMonitor) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = append(m.ready, ready)
}
