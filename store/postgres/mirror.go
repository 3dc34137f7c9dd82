package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/rostersync"
	"github.com/xraph/rostersync/mirror"
)

// GetProgram retrieves a mirrored program by its CRM reference.
func (s *Store) GetProgram(ctx context.Context, ref mirror.ProgramRef) (*mirror.Program, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			ref, name, status, course_id, chat_server_id, time_zone,
			created_at, updated_at
		FROM mirror_programs
		WHERE ref = $1`,
		string(ref),
	)

	p, err := scanProgram(row)
	if err != nil {
		if isNoRows(err) {
			return nil, rostersync.ErrProgramNotFound
		}
		return nil, fmt.Errorf("rostersync/postgres: get program: %w", err)
	}
	return p, nil
}

// ListPrograms returns all programs with the given status. An empty
// status returns every program.
func (s *Store) ListPrograms(ctx context.Context, status mirror.ProgramStatus) ([]*mirror.Program, error) {
	query := `
		SELECT
			ref, name, status, course_id, chat_server_id, time_zone,
			created_at, updated_at
		FROM mirror_programs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY ref ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("rostersync/postgres: list programs: %w", err)
	}
	defer rows.Close()

	var programs []*mirror.Program
	for rows.Next() {
		p, scanErr := scanProgram(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("rostersync/postgres: scan program row: %w", scanErr)
		}
		programs = append(programs, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rostersync/postgres: iterate program rows: %w", err)
	}
	return programs, nil
}

// ListParticipants returns all participants of a program.
func (s *Store) ListParticipants(ctx context.Context, ref mirror.ProgramRef) ([]*mirror.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			ref, program_ref, email, role, status, section_key,
			meeting_token, created_at, updated_at
		FROM mirror_participants
		WHERE program_ref = $1
		ORDER BY ref ASC`,
		string(ref),
	)
	if err != nil {
		return nil, fmt.Errorf("rostersync/postgres: list participants: %w", err)
	}
	defer rows.Close()

	var participants []*mirror.Participant
	for rows.Next() {
		p, scanErr := scanParticipant(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("rostersync/postgres: scan participant row: %w", scanErr)
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rostersync/postgres: iterate participant rows: %w", err)
	}
	return participants, nil
}

// scanProgram scans a single program row.
func scanProgram(row pgx.Row) (*mirror.Program, error) {
	var (
		p         mirror.Program
		refStr    string
		statusStr string
	)
	err := row.Scan(
		&refStr, &p.Name, &statusStr, &p.CourseID, &p.ChatServerID,
		&p.TimeZone, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Ref = mirror.ProgramRef(refStr)
	p.Status = mirror.ProgramStatus(statusStr)
	return &p, nil
}

// scanParticipant scans a single participant row.
func scanParticipant(row pgx.Row) (*mirror.Participant, error) {
	var (
		p          mirror.Participant
		refStr     string
		programStr string
		roleStr    string
		statusStr  string
	)
	err := row.Scan(
		&refStr, &programStr, &p.Email, &roleStr, &statusStr,
		&p.SectionKey, &p.MeetingToken, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Ref = mirror.ParticipantRef(refStr)
	p.Program = mirror.ProgramRef(programStr)
	p.Role = mirror.Role(roleStr)
	p.Status = mirror.EnrollmentStatus(statusStr)
	return &p, nil
}
