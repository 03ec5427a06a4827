package repositories

import (
	"context"

	"github.com/campus-events/attendance-service/internal/models"
)

// UserRepository interface for identity-store reads. The attendance service
// is not the owner of user data; registration writes it, we only look up.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByRollno(ctx context.Context, rollno string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Validation and checks
	ExistsByID(ctx context.Context, id string) (bool, error)
	ExistsByRollno(ctx context.Context, rollno string) (bool, error)
}
