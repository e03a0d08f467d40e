package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/finance-analyzer/internal/jobs"
	"github.com/dvloznov/finance-analyzer/internal/textparse"
)

func TestStore_SaveAndGetCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	job := &jobs.ExtractDocumentJob{JobID: "j1", Providers: []string{"gemini:flash"}, Status: jobs.JobStatusPending}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() unexpected error: %v", err)
	}
	job.Providers[0] = "mutated"
	job.Status = jobs.JobStatusFailed

	got, err := s.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob() unexpected error: %v", err)
	}
	if got.Providers[0] != "gemini:flash" || got.Status != jobs.JobStatusPending {
		t.Errorf("stored job was mutated through caller: %+v", got)
	}

	if err := s.SaveJob(ctx, &jobs.ExtractDocumentJob{}); err == nil {
		t.Error("SaveJob() without ID should fail")
	}
	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("GetJob(missing) error = %v, want ErrJobNotFound", err)
	}
}

func TestStore_ListJobs(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []*jobs.ExtractDocumentJob{
		{JobID: "a", Kind: textparse.KindStatement, Status: jobs.JobStatusCompleted, DocumentID: "d1", CreatedAt: base},
		{JobID: "b", Kind: textparse.KindReceipt, Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Minute)},
		{JobID: "c", Kind: textparse.KindStatement, Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Minute)},
		{JobID: "d", Kind: textparse.KindStatement, Status: jobs.JobStatusPending, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, j := range seed {
		_ = s.SaveJob(ctx, j)
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{name: "All", want: []string{"a", "b", "c", "d"}},
		{name: "ByStatus", filter: jobs.JobFilter{Status: jobs.JobStatusCompleted}, want: []string{"a", "c"}},
		{name: "ByKind", filter: jobs.JobFilter{Kind: textparse.KindReceipt}, want: []string{"b"}},
		{name: "ByDocument", filter: jobs.JobFilter{DocumentID: "d1"}, want: []string{"a"}},
		{name: "Paged", filter: jobs.JobFilter{Offset: 1, Limit: 2}, want: []string{"b", "c"}},
		{name: "OffsetPastEnd", filter: jobs.JobFilter{Offset: 10}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs() unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListJobs() returned %d jobs, want %d", len(got), len(tt.want))
			}
			for i, j := range got {
				if j.JobID != tt.want[i] {
					t.Errorf("job %d = %s, want %s", i, j.JobID, tt.want[i])
				}
			}
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.SaveJob(ctx, &jobs.ExtractDocumentJob{JobID: "j1", Status: jobs.JobStatusRunning})

	if err := s.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus() unexpected error: %v", err)
	}
	got, _ := s.GetJob(ctx, "j1")
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" {
		t.Errorf("job = %+v", got)
	}
	if err := s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("UpdateJobStatus(missing) error = %v", err)
	}
}
