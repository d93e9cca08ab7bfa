package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/pulsegate/pulsegate/internal/model"
)

// ConsentRepo implements ConsentRepository using PostgreSQL. The grantee
// union maps onto two nullable columns guarded by a CHECK constraint.
type ConsentRepo struct{ db *DB }

// NewConsentRepo constructs a consent repository.
func NewConsentRepo(db *DB) *ConsentRepo { return &ConsentRepo{db: db} }

// granteeColumns splits the union into its column values.
func granteeColumns(g model.Grantee) (person, group *int64) {
	id := g.ID()
	switch g.Kind() {
	case model.GranteePerson:
		return &id, nil
	case model.GranteeGroup:
		return nil, &id
	}
	return nil, nil
}

// Add inserts a grant edge.
func (r *ConsentRepo) Add(ctx context.Context, g *model.ConsentGrant) error {
	person, group := granteeColumns(g.Grantee)
	const q = `
INSERT INTO consent_grants (id, registration_id, grantee_person, grantee_group)
VALUES ($1,$2,$3,$4)`
	_, err := r.db.Pool.Exec(ctx, q, g.ID, g.RegistrationID, person, group)
	return err
}

// Remove deletes edges matching the grantee.
func (r *ConsentRepo) Remove(ctx context.Context, registrationID uuid.UUID, grantee model.Grantee) (bool, error) {
	var q string
	switch grantee.Kind() {
	case model.GranteePerson:
		q = `DELETE FROM consent_grants WHERE registration_id=$1 AND grantee_person=$2`
	case model.GranteeGroup:
		q = `DELETE FROM consent_grants WHERE registration_id=$1 AND grantee_group=$2`
	default:
		return false, nil
	}
	tag, err := r.db.Pool.Exec(ctx, q, registrationID, grantee.ID())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveAll deletes every edge for the registration.
func (r *ConsentRepo) RemoveAll(ctx context.Context, registrationID uuid.UUID) error {
	const q = `DELETE FROM consent_grants WHERE registration_id=$1`
	_, err := r.db.Pool.Exec(ctx, q, registrationID)
	return err
}

// List returns current grants split by grantee kind, in grant order.
func (r *ConsentRepo) List(ctx context.Context, registrationID uuid.UUID) (model.ConsentList, error) {
	const q = `
SELECT grantee_person, grantee_group FROM consent_grants
WHERE registration_id=$1 ORDER BY created_at`
	rows, err := r.db.Pool.Query(ctx, q, registrationID)
	if err != nil {
		return model.ConsentList{}, err
	}
	defer rows.Close()

	var list model.ConsentList
	for rows.Next() {
		var person, group *int64
		if err := rows.Scan(&person, &group); err != nil {
			return model.ConsentList{}, err
		}
		switch {
		case person != nil:
			list.People = append(list.People, *person)
		case group != nil:
			list.Groups = append(list.Groups, *group)
		}
	}
	return list, rows.Err()
}

// HasEdge reports whether the controller holds a direct or group-derived edge.
// Group membership is the caller's live view, passed in as an array.
func (r *ConsentRepo) HasEdge(ctx context.Context, registrationID uuid.UUID, controllerID int64, groupIDs []int64) (bool, error) {
	const q = `
SELECT EXISTS (
    SELECT 1 FROM consent_grants
    WHERE registration_id=$1
      AND (grantee_person=$2 OR grantee_group = ANY($3::bigint[]))
)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, registrationID, controllerID, groupIDs).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// ControllableTargets lists person IDs the controller may act on in the community.
func (r *ConsentRepo) ControllableTargets(ctx context.Context, communityID, controllerID int64, groupIDs []int64) ([]int64, error) {
	const q = `
SELECT DISTINCT reg.person_id
FROM registrations reg
JOIN consent_grants cg ON cg.registration_id = reg.id
WHERE reg.community_id=$1
  AND (cg.grantee_person=$2 OR cg.grantee_group = ANY($3::bigint[]))`
	rows, err := r.db.Pool.Query(ctx, q, communityID, controllerID, groupIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
