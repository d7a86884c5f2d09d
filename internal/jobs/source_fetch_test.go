package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sableword/presswork/internal/domain"
	"github.com/sableword/presswork/internal/queue"
)

func TestSourceFetchHandlerChainsGenerationJob(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Raised beds improve drainage."))
	}))
	defer server.Close()

	mockStore := queue.NewMockJobStore()
	handler := NewSourceFetchHandler(mockStore, time.Second, testLogger())
	assert.Equal(t, domain.JobTypeSourceFetch, handler.JobType())

	payload, err := json.Marshal(SourceFetchPayload{
		URL:      server.URL,
		Topic:    "gardening",
		Keywords: []string{"compost"},
	})
	require.NoError(t, err)

	job := &domain.Job{
		ID:       7,
		JobType:  domain.JobTypeSourceFetch,
		Payload:  payload,
		Priority: 3,
	}
	require.NoError(t, handler.Handle(context.Background(), job))

	// A content_generation job was queued with the fetched text and the
	// parent job's priority.
	claimed, err := mockStore.ReserveBatch(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, domain.JobTypeContentGeneration, claimed[0].JobType)
	assert.Equal(t, 3, claimed[0].Priority)

	var followUp ContentGenerationPayload
	require.NoError(t, json.Unmarshal(claimed[0].Payload, &followUp))
	assert.Equal(t, "gardening", followUp.Topic)
	assert.Equal(t, []string{"compost"}, followUp.Keywords)
	assert.Equal(t, "Raised beds improve drainage.", followUp.SourceText)
}

func TestSourceFetchHandlerRejectsBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	mockStore := queue.NewMockJobStore()
	handler := NewSourceFetchHandler(mockStore, time.Second, testLogger())

	payload, err := json.Marshal(SourceFetchPayload{URL: server.URL, Topic: "gardening"})
	require.NoError(t, err)

	err = handler.Handle(context.Background(), &domain.Job{
		ID: 7, JobType: domain.JobTypeSourceFetch, Payload: payload,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.Equal(t, 0, mockStore.LiveCount(), "no follow-up job on failure")
}

func TestSourceFetchHandlerValidatesPayload(t *testing.T) {
	t.Parallel()

	handler := NewSourceFetchHandler(queue.NewMockJobStore(), time.Second, testLogger())

	tests := []struct {
		name    string
		payload SourceFetchPayload
		wantMsg string
	}{
		{"missing url", SourceFetchPayload{Topic: "t"}, "missing a url"},
		{"missing topic", SourceFetchPayload{URL: "http://example.com"}, "missing a topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raw, err := json.Marshal(tt.payload)
			require.NoError(t, err)

			err = handler.Handle(context.Background(), &domain.Job{
				ID: 1, JobType: domain.JobTypeSourceFetch, Payload: raw,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSourceFetchHandlerTruncatesLargeSources(t *testing.T) {
	t.Parallel()

	big := make([]byte, maxSourceBytes+1024)
	for i := range big {
		big[i] = 'a'
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(big)
	}))
	defer server.Close()

	mockStore := queue.NewMockJobStore()
	handler := NewSourceFetchHandler(mockStore, time.Second, testLogger())

	payload, err := json.Marshal(SourceFetchPayload{URL: server.URL, Topic: "t"})
	require.NoError(t, err)
	require.NoError(t, handler.Handle(context.Background(), &domain.Job{
		ID: 1, JobType: domain.JobTypeSourceFetch, Payload: payload,
	}))

	claimed, err := mockStore.ReserveBatch(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	var followUp ContentGenerationPayload
	require.NoError(t, json.Unmarshal(claimed[0].Payload, &followUp))
	assert.Len(t, followUp.SourceText, maxSourceBytes)
}

// Interface conformance for every built-in handler.
var (
	_ queue.Handler = (*ContentGenerationHandler)(nil)
	_ queue.Handler = (*SourceFetchHandler)(nil)
	_ queue.Handler = (*ImageOptimizationHandler)(nil)
	_ queue.Handler = (*AnalyticsUpdateHandler)(nil)
)
