package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pfrederiksen/permit-scraper/internal/logger"
	"github.com/pfrederiksen/permit-scraper/internal/permit"
)

var textColumns = []permit.Field{
	permit.FieldPermitType,
	permit.FieldPermitSubtype,
	permit.FieldStatus,
	permit.FieldDescription,
	permit.FieldWorkDescription,
	permit.FieldProjectName,
	permit.FieldAppliedDate,
	permit.FieldIssuedDate,
	permit.FieldFinalDate,
	permit.FieldExpirationDate,
	permit.FieldLastInspectionDate,
	permit.FieldAddress,
	permit.FieldParcelNumber,
	permit.FieldSubdivision,
	permit.FieldLot,
	permit.FieldBlock,
	permit.FieldLotSize,
	permit.FieldOwnerName,
	permit.FieldContractorName,
	permit.FieldContractorLicense,
	permit.FieldApplicantName,
	permit.FieldConstructionType,
	permit.FieldZoning,
	permit.FieldUseCode,
	permit.FieldOccupancyType,
}

var amountColumns = []permit.Field{
	permit.FieldJobValue,
	permit.FieldTotalFees,
	permit.FieldFeesPaid,
	permit.FieldFeesDue,
}

var countColumns = []permit.Field{
	permit.FieldSquareFootage,
	permit.FieldDwellingUnits,
	permit.FieldStories,
}

var metaColumns = []string{
	"parsed_address",
	"completeness_score",
	"extraction_errors",
	"data_quality_flags",
	"address_validation_flag",
	"job_value_validation_flag",
	"scraped_timestamp",
	"page_structure_hash",
	"updated_at",
}

// permitColumns lists every permits column in insert and scan order.
func permitColumns() []string {
	cols := []string{string(permit.FieldPermitNumber)}
	for _, group := range [][]permit.Field{textColumns, amountColumns, countColumns} {
		for _, f := range group {
			cols = append(cols, string(f))
		}
	}
	return append(cols, metaColumns...)
}

var (
	selectPermitSQL = "SELECT " + strings.Join(permitColumns(), ", ") + " FROM permits"
	upsertPermitSQL = buildUpsert()
)

func buildUpsert() string {
	cols := permitColumns()
	params := make([]string, len(cols))
	var updates []string
	for i, c := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
		if i > 0 {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	return fmt.Sprintf("INSERT INTO permits (%s) VALUES (%s) ON CONFLICT (permit_number) DO UPDATE SET %s",
		strings.Join(cols, ", "), strings.Join(params, ", "), strings.Join(updates, ", "))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func jsonText(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// permitArgs returns the column values of rec in permitColumns order.
func permitArgs(rec *permit.Record, now time.Time) ([]any, error) {
	args := []any{rec.PermitNumber}
	for _, f := range textColumns {
		args = append(args, nullString(*rec.TextField(f)))
	}
	for _, f := range amountColumns {
		args = append(args, *rec.AmountField(f))
	}
	for _, f := range countColumns {
		args = append(args, *rec.CountField(f))
	}

	var parsed sql.NullString
	if !rec.ParsedAddress.IsZero() {
		text, err := jsonText(rec.ParsedAddress)
		if err != nil {
			return nil, fmt.Errorf("encoding parsed address: %w", err)
		}
		parsed = nullString(text)
	}
	errs, err := jsonText(append([]string{}, rec.ExtractionErrors...))
	if err != nil {
		return nil, fmt.Errorf("encoding extraction errors: %w", err)
	}
	flags, err := jsonText(rec.DataQualityFlags.Sorted())
	if err != nil {
		return nil, fmt.Errorf("encoding quality flags: %w", err)
	}

	return append(args,
		parsed,
		rec.CompletenessScore,
		errs,
		flags,
		nullString(rec.AddressValidationFlag),
		nullString(rec.JobValueValidationFlag),
		rec.ScrapedTimestamp,
		nullString(rec.PageStructureHash),
		now.UTC().Format(timeLayout),
	), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPermit(row scanner) (*permit.Record, error) {
	rec := permit.New("")

	texts := make([]sql.NullString, len(textColumns))
	amounts := make([]sql.NullFloat64, len(amountColumns))
	counts := make([]sql.NullInt64, len(countColumns))
	var (
		parsed, addrFlag, jobFlag, hash sql.NullString
		errs, flags, updatedAt          string
	)

	dest := []any{&rec.PermitNumber}
	for i := range texts {
		dest = append(dest, &texts[i])
	}
	for i := range amounts {
		dest = append(dest, &amounts[i])
	}
	for i := range counts {
		dest = append(dest, &counts[i])
	}
	dest = append(dest, &parsed, &rec.CompletenessScore, &errs, &flags,
		&addrFlag, &jobFlag, &rec.ScrapedTimestamp, &hash, &updatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	for i, f := range textColumns {
		*rec.TextField(f) = texts[i].String
	}
	for i, f := range amountColumns {
		if amounts[i].Valid {
			v := amounts[i].Float64
			*rec.AmountField(f) = &v
		}
	}
	for i, f := range countColumns {
		if counts[i].Valid {
			v := int(counts[i].Int64)
			*rec.CountField(f) = &v
		}
	}

	if parsed.Valid {
		if err := json.Unmarshal([]byte(parsed.String), &rec.ParsedAddress); err != nil {
			return nil, fmt.Errorf("decoding parsed address: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(errs), &rec.ExtractionErrors); err != nil {
		return nil, fmt.Errorf("decoding extraction errors: %w", err)
	}
	if len(rec.ExtractionErrors) == 0 {
		rec.ExtractionErrors = nil
	}
	if err := json.Unmarshal([]byte(flags), &rec.DataQualityFlags); err != nil {
		return nil, fmt.Errorf("decoding quality flags: %w", err)
	}
	rec.AddressValidationFlag = addrFlag.String
	rec.JobValueValidationFlag = jobFlag.String
	rec.PageStructureHash = hash.String
	return rec, nil
}

// Save upserts rec, replaces its fees, related permits and inspection tally,
// and appends any watched-field changes to the status history. It returns
// those changes. The last save of a permit wins.
func (s *Store) Save(ctx context.Context, rec *permit.Record) ([]permit.Change, error) {
	if !rec.Identified() {
		return nil, fmt.Errorf("saving permit: record has no permit number")
	}

	var changes []permit.Change
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		previous, err := getPermit(ctx, tx, rec.PermitNumber)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		changes = permit.DetectChanges(previous, rec)

		args, err := permitArgs(rec, time.Now())
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, upsertPermitSQL, args...); err != nil {
			return fmt.Errorf("upserting permit %s: %w", rec.PermitNumber, err)
		}

		if err := replaceChildren(ctx, tx, rec); err != nil {
			return err
		}
		return insertHistory(ctx, tx, changes)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Saved permit", logger.Fields{
		"permit_number": rec.PermitNumber,
		"changes":       len(changes),
	})
	return changes, nil
}

func replaceChildren(ctx context.Context, q querier, rec *permit.Record) error {
	for _, table := range []string{"permit_fees", "related_permits", "inspection_tallies"} {
		if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE permit_number = $1", rec.PermitNumber); err != nil {
			return fmt.Errorf("clearing %s for %s: %w", table, rec.PermitNumber, err)
		}
	}

	for i, fee := range rec.ItemizedFees {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO permit_fees (permit_number, position, description, amount, status) VALUES ($1, $2, $3, $4, $5)`,
			rec.PermitNumber, i, fee.Description, fee.Amount, fee.Status); err != nil {
			return fmt.Errorf("inserting fee for %s: %w", rec.PermitNumber, err)
		}
	}

	for _, related := range rec.RelatedPermits.Sorted() {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO related_permits (permit_number, related_number) VALUES ($1, $2)`,
			rec.PermitNumber, related); err != nil {
			return fmt.Errorf("inserting related permit for %s: %w", rec.PermitNumber, err)
		}
	}

	if rec.InspectionsCount != nil {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO inspection_tallies (permit_number, total, passed, failed, pending) VALUES ($1, $2, $3, $4, $5)`,
			rec.PermitNumber, *rec.InspectionsCount, valueOr(rec.PassedInspections),
			valueOr(rec.FailedInspections), valueOr(rec.PendingInspections)); err != nil {
			return fmt.Errorf("inserting inspection tally for %s: %w", rec.PermitNumber, err)
		}
	}
	return nil
}

func valueOr(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func insertHistory(ctx context.Context, q querier, changes []permit.Change) error {
	for _, c := range changes {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO status_history (id, permit_number, field, kind, old_value, new_value, detected_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.NewString(), c.PermitNumber, string(c.Field), string(c.Kind), c.Old, c.New,
			c.DetectedAt.UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("recording change for %s: %w", c.PermitNumber, err)
		}
	}
	return nil
}

// Get loads a permit with its child rows.
func (s *Store) Get(ctx context.Context, number string) (*permit.Record, error) {
	return getPermit(ctx, s.db, number)
}

func getPermit(ctx context.Context, q querier, number string) (*permit.Record, error) {
	rec, err := scanPermit(q.QueryRowContext(ctx, selectPermitSQL+" WHERE permit_number = $1", number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("permit %s: %w", number, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading permit %s: %w", number, err)
	}
	if err := loadChildren(ctx, q, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func loadChildren(ctx context.Context, q querier, rec *permit.Record) error {
	rows, err := q.QueryContext(ctx,
		`SELECT description, amount, status FROM permit_fees WHERE permit_number = $1 ORDER BY position`, rec.PermitNumber)
	if err != nil {
		return fmt.Errorf("loading fees for %s: %w", rec.PermitNumber, err)
	}
	for rows.Next() {
		var fee permit.Fee
		if err := rows.Scan(&fee.Description, &fee.Amount, &fee.Status); err != nil {
			rows.Close()
			return fmt.Errorf("scanning fee for %s: %w", rec.PermitNumber, err)
		}
		rec.ItemizedFees = append(rec.ItemizedFees, fee)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loading fees for %s: %w", rec.PermitNumber, err)
	}

	rows, err = q.QueryContext(ctx,
		`SELECT related_number FROM related_permits WHERE permit_number = $1`, rec.PermitNumber)
	if err != nil {
		return fmt.Errorf("loading related permits for %s: %w", rec.PermitNumber, err)
	}
	for rows.Next() {
		var related string
		if err := rows.Scan(&related); err != nil {
			rows.Close()
			return fmt.Errorf("scanning related permit for %s: %w", rec.PermitNumber, err)
		}
		rec.RelatedPermits.Add(related)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loading related permits for %s: %w", rec.PermitNumber, err)
	}

	var total, passed, failed, pending int
	err = q.QueryRowContext(ctx,
		`SELECT total, passed, failed, pending FROM inspection_tallies WHERE permit_number = $1`, rec.PermitNumber).
		Scan(&total, &passed, &failed, &pending)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("loading inspection tally for %s: %w", rec.PermitNumber, err)
	default:
		rec.InspectionsCount = &total
		rec.PassedInspections = &passed
		rec.FailedInspections = &failed
		rec.PendingInspections = &pending
	}
	return nil
}

// ListOptions filters List.
type ListOptions struct {
	Status   string
	MinScore float64
	Limit    int
}

// List returns permits ordered by permit number.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*permit.Record, error) {
	query := selectPermitSQL + " WHERE completeness_score >= $1"
	args := []any{opts.MinScore}
	if opts.Status != "" {
		args = append(args, opts.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY permit_number"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing permits: %w", err)
	}
	var records []*permit.Record
	for rows.Next() {
		rec, err := scanPermit(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning permit: %w", err)
		}
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing permits: %w", err)
	}

	for _, rec := range records {
		if err := loadChildren(ctx, s.db, rec); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Delete removes a permit and everything recorded about it.
func (s *Store) Delete(ctx context.Context, number string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM permits WHERE permit_number = $1`, number)
	if err != nil {
		return fmt.Errorf("deleting permit %s: %w", number, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting permit %s: %w", number, err)
	}
	if n == 0 {
		return fmt.Errorf("permit %s: %w", number, ErrNotFound)
	}
	logger.Info("Deleted permit", logger.Fields{"permit_number": number})
	return nil
}

// StatusHistory returns the recorded changes of a permit, oldest first.
func (s *Store) StatusHistory(ctx context.Context, number string) ([]permit.Change, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT permit_number, field, kind, old_value, new_value, detected_at
		 FROM status_history WHERE permit_number = $1 ORDER BY detected_at, id`, number)
	if err != nil {
		return nil, fmt.Errorf("loading history for %s: %w", number, err)
	}
	defer rows.Close()

	var changes []permit.Change
	for rows.Next() {
		var (
			c              permit.Change
			field, kind    string
			detectedAtText string
		)
		if err := rows.Scan(&c.PermitNumber, &field, &kind, &c.Old, &c.New, &detectedAtText); err != nil {
			return nil, fmt.Errorf("scanning history for %s: %w", number, err)
		}
		c.Field = permit.Field(field)
		c.Kind = permit.ChangeKind(kind)
		if c.DetectedAt, err = time.Parse(timeLayout, detectedAtText); err != nil {
			return nil, fmt.Errorf("parsing history time for %s: %w", number, err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
