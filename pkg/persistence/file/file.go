// Package file provides file-based persistence for funnels and enrollments.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root string
	mu   sync.RWMutex

	categories  *collection[models.Category]
	funnels     *collection[models.Funnel]
	steps       *collection[models.FunnelStep]
	messages    *collection[models.MessageTemplate]
	enrollments *collection[models.Enrollment]
	executions  *collection[models.StepExecution]
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:        cleanRoot,
		categories:  newCollection(cleanRoot, "categories", func(c *models.Category) string { return c.ID }),
		funnels:     newCollection(cleanRoot, "funnels", func(f *models.Funnel) string { return f.ID }),
		steps:       newCollection(cleanRoot, "funnel_steps", func(s *models.FunnelStep) string { return s.ID }),
		messages:    newCollection(cleanRoot, "message_templates", func(m *models.MessageTemplate) string { return m.ID }),
		enrollments: newCollection(cleanRoot, "enrollments", func(e *models.Enrollment) string { return e.ID }),
		executions:  newCollection(cleanRoot, "step_executions", func(e *models.StepExecution) string { return e.ID }),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) CategoryRepository() persistence.CategoryRepository {
	return &categoryRepository{fp: fp}
}

func (fp *Persistence) FunnelRepository() persistence.FunnelRepository {
	return &funnelRepository{fp: fp}
}

func (fp *Persistence) StepRepository() persistence.StepRepository {
	return &stepRepository{fp: fp}
}

func (fp *Persistence) MessageRepository() persistence.MessageRepository {
	return &messageRepository{fp: fp}
}

func (fp *Persistence) EnrollmentRepository() persistence.EnrollmentRepository {
	return &enrollmentRepository{fp: fp}
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return &executionRepository{fp: fp}
}
