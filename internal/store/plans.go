package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tripcrew/trip-planner/internal/model"
)

// FeedbackField is the data key replan stores the traveler's feedback under.
const FeedbackField = "feedback"

// SavePlan appends a new version to the user's plan with the given title,
// creating the plan on first save. It returns the plan id and the new version
// number.
func (s *Store) SavePlan(ctx context.Context, userID int64, title string, data model.JSONMap, notes *string, rating *int) (int64, int, error) {
	var planID int64
	var version int
	err := s.retryOnConflict(ctx, func() error {
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			var err error
			planID, err = s.ensurePlan(ctx, tx, userID, title)
			if err != nil {
				return err
			}
			version, err = s.appendVersion(ctx, tx, planID, data, notes, rating)
			return err
		})
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to save plan: %w", err)
	}
	return planID, version, nil
}

func (s *Store) ensurePlan(ctx context.Context, tx *sqlx.Tx, userID int64, title string) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id,
		s.rebind(`SELECT id FROM plans WHERE user_id = ? AND title = ?`+s.forUpdate()), userID, title)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	err = tx.QueryRowxContext(ctx,
		s.rebind(`INSERT INTO plans (user_id, title, created_at) VALUES (?, ?, ?) RETURNING id`),
		userID, title, time.Now().UTC()).Scan(&id)
	return id, err
}

// appendVersion inserts version max+1 for planID. It must run inside the
// transaction that will commit the row.
func (s *Store) appendVersion(ctx context.Context, tx *sqlx.Tx, planID int64, data model.JSONMap, notes *string, rating *int) (int, error) {
	if s.driver == DriverPostgres {
		var locked int64
		if err := tx.GetContext(ctx, &locked, s.rebind(`SELECT id FROM plans WHERE id = ? FOR UPDATE`), planID); err != nil {
			return 0, err
		}
	}

	var current int
	if err := tx.GetContext(ctx, &current,
		s.rebind(`SELECT COALESCE(MAX(version), 0) FROM plan_versions WHERE plan_id = ?`), planID); err != nil {
		return 0, err
	}

	if data == nil {
		data = model.JSONMap{}
	}
	next := current + 1
	_, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO plan_versions (plan_id, version, data, notes, rating, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		planID, next, data, notes, rating, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return next, nil
}

// ListPlans returns the user's plans with their latest version number, most
// recently revised first.
func (s *Store) ListPlans(ctx context.Context, userID int64) ([]model.PlanSummary, error) {
	plans := []model.PlanSummary{}
	err := s.db.SelectContext(ctx, &plans, s.rebind(`
		SELECT p.id, p.title, MAX(v.version) AS latest_version
		FROM plans p
		JOIN plan_versions v ON v.plan_id = p.id
		WHERE p.user_id = ?
		GROUP BY p.id, p.title
		ORDER BY latest_version DESC, p.id DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// ListVersions returns every version of a plan, newest first.
func (s *Store) ListVersions(ctx context.Context, planID, userID int64) ([]model.PlanVersion, error) {
	if err := s.checkOwner(ctx, s.db, planID, userID); err != nil {
		return nil, err
	}

	versions := []model.PlanVersion{}
	err := s.db.SelectContext(ctx, &versions, s.rebind(`
		SELECT id, plan_id, version, data, notes, rating, created_at
		FROM plan_versions
		WHERE plan_id = ?
		ORDER BY version DESC`), planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

// GetVersion returns one version of a plan.
func (s *Store) GetVersion(ctx context.Context, planID int64, version int, userID int64) (*model.PlanVersion, error) {
	if err := s.checkOwner(ctx, s.db, planID, userID); err != nil {
		return nil, err
	}

	var v model.PlanVersion
	err := s.db.GetContext(ctx, &v, s.rebind(`
		SELECT id, plan_id, version, data, notes, rating, created_at
		FROM plan_versions
		WHERE plan_id = ? AND version = ?`), planID, version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return &v, nil
}

// ToggleFavorite flips the user's favorite flag on a plan and returns the new
// state. The first toggle creates the row as active.
func (s *Store) ToggleFavorite(ctx context.Context, planID, userID int64) (bool, error) {
	var active bool
	err := s.retryOnConflict(ctx, func() error {
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			if err := s.checkOwner(ctx, tx, planID, userID); err != nil {
				return err
			}

			err := tx.GetContext(ctx, &active, s.rebind(`
				UPDATE favorites SET active = NOT active
				WHERE user_id = ? AND plan_id = ?
				RETURNING active`), userID, planID)
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}

			active = true
			_, err = tx.ExecContext(ctx,
				s.rebind(`INSERT INTO favorites (user_id, plan_id, active, created_at) VALUES (?, ?, ?, ?)`),
				userID, planID, true, time.Now().UTC())
			return err
		})
	})
	if err != nil {
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	return active, nil
}

// Replan copies the data of the version with row id versionID, records
// feedback in it and appends the result as the next version of that
// version's plan. Nothing is generated. A non-zero planID must match the
// version's plan.
func (s *Store) Replan(ctx context.Context, planID, versionID int64, feedback string, userID int64) (int64, int, error) {
	var (
		targetPlan int64
		newVersion int
	)
	err := s.retryOnConflict(ctx, func() error {
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			var row struct {
				PlanID  int64         `db:"plan_id"`
				OwnerID int64         `db:"user_id"`
				Data    model.JSONMap `db:"data"`
			}
			err := tx.GetContext(ctx, &row, s.rebind(`
				SELECT v.plan_id, p.user_id, v.data
				FROM plan_versions v
				JOIN plans p ON p.id = v.plan_id
				WHERE v.id = ?`), versionID)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			if planID != 0 && row.PlanID != planID {
				return ErrNotFound
			}
			if row.OwnerID != userID {
				return ErrForbidden
			}

			data, err := row.Data.Clone()
			if err != nil {
				return err
			}
			data[FeedbackField] = feedback

			targetPlan = row.PlanID
			newVersion, err = s.appendVersion(ctx, tx, row.PlanID, data, nil, nil)
			return err
		})
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to replan: %w", err)
	}
	return targetPlan, newVersion, nil
}

// DeletePlan removes a plan with its versions and favorites.
func (s *Store) DeletePlan(ctx context.Context, planID, userID int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.checkOwner(ctx, tx, planID, userID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM plans WHERE id = ?`), planID); err != nil {
			return fmt.Errorf("failed to delete plan: %w", err)
		}
		return nil
	})
}

// checkOwner returns ErrNotFound when the plan does not exist and
// ErrForbidden when it belongs to someone else.
func (s *Store) checkOwner(ctx context.Context, q sqlx.QueryerContext, planID, userID int64) error {
	var owner int64
	err := sqlx.GetContext(ctx, q, &owner, s.rebind(`SELECT user_id FROM plans WHERE id = ?`), planID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}
	if owner != userID {
		return ErrForbidden
	}
	return nil
}
