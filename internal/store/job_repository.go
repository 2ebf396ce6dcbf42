package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/YKarmar/JobMail/internal/types"
)

type JobRepository interface {
	HasEmail(ctx context.Context, emailID string) (bool, error)
	// SaveParsed stores a parsed job keyed by its mailbox message id. It is a
	// no-op returning false when that message was already stored.
	SaveParsed(ctx context.Context, emailID string, job *types.ParsedJob) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]types.JobApplication, int64, error)
	Get(ctx context.Context, id uint) (*types.JobApplication, error)
	Create(ctx context.Context, app *types.JobApplication) error
	Update(ctx context.Context, id uint, update JobUpdate) (*types.JobApplication, error)
	Delete(ctx context.Context, id uint) error
	Stats(ctx context.Context) (map[types.Status]int64, error)
}

type ListFilter struct {
	Skip   int
	Limit  int
	Status types.Status
	Search string
}

// JobUpdate carries a partial update. Nil required fields are left untouched.
// Nullable fields use Optional so that an explicit null clears them.
type JobUpdate struct {
	Company     *string             `json:"company"`
	Position    *string             `json:"position"`
	Status      *types.Status       `json:"status"`
	Location    Optional[string]    `json:"location"`
	SalaryRange Optional[string]    `json:"salary_range"`
	JobURL      Optional[string]    `json:"job_url"`
	Source      Optional[string]    `json:"source"`
	Notes       Optional[string]    `json:"notes"`
	AppliedDate Optional[time.Time] `json:"applied_date"`
}

// Optional is a nullable field of a partial update. Set reports whether the
// field was present at all; Value is nil when it was set to null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns a set Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns a set Optional that clears the field.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o Optional[T]) apply(dst **T) {
	if o.Set {
		*dst = o.Value
	}
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) HasEmail(ctx context.Context, emailID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&types.JobApplication{}).
		Where("email_id = ?", emailID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check email %s: %w", emailID, err)
	}
	return count > 0, nil
}

func (r *jobRepository) SaveParsed(ctx context.Context, emailID string, job *types.ParsedJob) (bool, error) {
	id := emailID
	app := types.JobApplication{
		Company:     job.Company,
		Position:    job.Position,
		Status:      job.Status,
		Source:      job.Source,
		EmailID:     &id,
		AppliedDate: job.AppliedDate,
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email_id"}}, DoNothing: true}).
		Create(&app)
	if result.Error != nil {
		return false, fmt.Errorf("save job from email %s: %w", emailID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *jobRepository) List(ctx context.Context, filter ListFilter) ([]types.JobApplication, int64, error) {
	filtered := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&types.JobApplication{})
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if s := strings.TrimSpace(filter.Search); s != "" {
			term := "%" + strings.ToLower(s) + "%"
			q = q.Where("LOWER(company) LIKE ? OR LOWER(position) LIKE ?", term, term)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	q := filtered().Order("applied_date DESC").Order("id DESC").Offset(filter.Skip)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var apps []types.JobApplication
	if err := q.Find(&apps).Error; err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	return apps, total, nil
}

func (r *jobRepository) Get(ctx context.Context, id uint) (*types.JobApplication, error) {
	var app types.JobApplication
	if err := r.db.WithContext(ctx).First(&app, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &app, nil
}

func (r *jobRepository) Create(ctx context.Context, app *types.JobApplication) error {
	if app.Status == "" {
		app.Status = types.StatusApplied
	}
	if err := r.db.WithContext(ctx).Create(app).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (r *jobRepository) Update(ctx context.Context, id uint, update JobUpdate) (*types.JobApplication, error) {
	app, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Company != nil {
		app.Company = *update.Company
	}
	if update.Position != nil {
		app.Position = *update.Position
	}
	if update.Status != nil {
		app.Status = *update.Status
	}
	update.Location.apply(&app.Location)
	update.SalaryRange.apply(&app.SalaryRange)
	update.JobURL.apply(&app.JobURL)
	update.Source.apply(&app.Source)
	update.Notes.apply(&app.Notes)
	update.AppliedDate.apply(&app.AppliedDate)

	if err := r.db.WithContext(ctx).Save(app).Error; err != nil {
		return nil, fmt.Errorf("update job %d: %w", id, err)
	}
	return app, nil
}

func (r *jobRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&types.JobApplication{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete job %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *jobRepository) Stats(ctx context.Context) (map[types.Status]int64, error) {
	var rows []struct {
		Status types.Status
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&types.JobApplication{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}

	stats := make(map[types.Status]int64, len(types.Statuses))
	for _, s := range types.Statuses {
		stats[s] = 0
	}
	for _, row := range rows {
		stats[row.Status] = row.Count
	}
	return stats, nil
}
