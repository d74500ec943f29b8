package meetingsvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/trezcool/darasa/core/tuition"
)

// dummyService hands out fake links for local development and tests.
type dummyService struct {
	provider string

	mu   sync.Mutex
	seq  int
	Done []tuition.MeetingLink // cancelled links, for assertions
}

var _ tuition.MeetingService = (*dummyService)(nil)

func NewDummyService(provider string) *dummyService {
	return &dummyService{provider: provider}
}

func (svc *dummyService) Schedule(ctx context.Context, r tuition.MeetingRequest) (tuition.MeetingLink, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.seq++
	id := fmt.Sprintf("%s-%d", svc.provider, svc.seq)
	return tuition.MeetingLink{
		Provider:   svc.provider,
		URL:        fmt.Sprintf("https://meet.invalid/%s", id),
		ExternalID: id,
	}, nil
}

func (svc *dummyService) Cancel(ctx context.Context, link tuition.MeetingLink) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.Done = append(svc.Done, link)
	return nil
}
