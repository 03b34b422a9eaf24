package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"crmsaas/internal/repositories"
	"crmsaas/internal/storage"
	"crmsaas/internal/tenancy"
)

// RowError is one rejected import row, 1-based and excluding the header.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type ImportReport struct {
	Format   string     `json:"format"`
	Total    int        `json:"total"`
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors,omitempty"`
	Object   string     `json:"object,omitempty"`
}

type ImporterService interface {
	ImportCustomers(ctx context.Context, filename string, r io.Reader, actor *uuid.UUID) (*ImportReport, error)
	ImportLeads(ctx context.Context, filename string, r io.Reader, actor *uuid.UUID) (*ImportReport, error)
}

type importerService struct {
	customers    CustomerService
	leads        LeadService
	customerRepo repositories.CustomerRepository
	store        storage.ObjectStore
	bucket       string
	log          *zap.Logger
}

func NewImporterService(customers CustomerService, leads LeadService, customerRepo repositories.CustomerRepository, store storage.ObjectStore, bucket string, log *zap.Logger) ImporterService {
	return &importerService{
		customers:    customers,
		leads:        leads,
		customerRepo: customerRepo,
		store:        store,
		bucket:       bucket,
		log:          log,
	}
}

var customerKeyMap = map[string][]string{
	"name":      {"name", "full_name", "customer_name"},
	"email":     {"email", "e-mail"},
	"phone":     {"phone", "mobile", "contact_number"},
	"company":   {"company", "organization"},
	"address":   {"address", "street"},
	"city":      {"city"},
	"state":     {"state", "province"},
	"country":   {"country"},
	"zip_code":  {"zip_code", "zipcode", "postal_code"},
	"is_active": {"is_active", "active"},
}

var leadKeyMap = map[string][]string{
	"name":           {"name", "lead_name", "title"},
	"email":          {"email", "e-mail"},
	"phone":          {"phone", "mobile", "contact_number"},
	"status":         {"status"},
	"source":         {"source", "channel"},
	"notes":          {"notes", "note", "description"},
	"customer_email": {"customer_email", "client_email"},
	"customer_name":  {"customer_name", "client_name"},
	"is_active":      {"is_active", "active"},
}

func (s *importerService) ImportCustomers(ctx context.Context, filename string, r io.Reader, actor *uuid.UUID) (*ImportReport, error) {
	rows, report, err := s.prepare(ctx, filename, r)
	if err != nil {
		return nil, err
	}

	for i, row := range rows {
		fields := normalizeRow(row, customerKeyMap)
		name := fields["name"]
		if name == "" {
			report.Skipped++
			report.Errors = append(report.Errors, RowError{Row: i + 1, Reason: "missing name"})
			continue
		}
		req := &CustomerRequest{
			Name:    name,
			Email:   optional(fields["email"]),
			Phone:   optional(fields["phone"]),
			Company: optional(fields["company"]),
			Address: optional(fields["address"]),
			City:    optional(fields["city"]),
			State:   optional(fields["state"]),
			Country: optional(fields["country"]),
			ZipCode: optional(fields["zip_code"]),
		}
		if _, err := s.customers.Create(ctx, req, actor); err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, RowError{Row: i + 1, Reason: err.Error()})
			continue
		}
		report.Imported++
	}
	return report, nil
}

func (s *importerService) ImportLeads(ctx context.Context, filename string, r io.Reader, actor *uuid.UUID) (*ImportReport, error) {
	rows, report, err := s.prepare(ctx, filename, r)
	if err != nil {
		return nil, err
	}

	for i, row := range rows {
		fields := normalizeRow(row, leadKeyMap)
		name := fields["name"]
		if name == "" {
			report.Skipped++
			report.Errors = append(report.Errors, RowError{Row: i + 1, Reason: "missing name"})
			continue
		}
		req := &LeadRequest{
			Name:   name,
			Email:  optional(fields["email"]),
			Phone:  optional(fields["phone"]),
			Status: fields["status"],
			Source: optional(fields["source"]),
			Notes:  optional(fields["notes"]),
		}
		if email := fields["customer_email"]; email != "" {
			if id, ok := s.findCustomerByEmail(ctx, email); ok {
				req.CustomerID = &id
			}
		}
		if _, err := s.leads.Create(ctx, req, actor); err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, RowError{Row: i + 1, Reason: err.Error()})
			continue
		}
		report.Imported++
	}
	return report, nil
}

// prepare buffers the upload, archives it to object storage and parses it
// into header-keyed rows. Archive failures are logged, not fatal; the import
// itself matters more than the copy.
func (s *importerService) prepare(ctx context.Context, filename string, r io.Reader) ([]map[string]string, *ImportReport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}

	report := &ImportReport{}
	if s.store != nil {
		object := archiveObjectName(ctx, filename)
		err := s.store.Upload(ctx, s.bucket, object, bytes.NewReader(data), int64(len(data)), "application/octet-stream")
		if err != nil {
			s.log.Warn("failed to archive import file",
				zap.String("object", object),
				zap.Error(err))
		} else {
			report.Object = object
		}
	}

	rows, format, err := parseTabular(filename, data)
	if err != nil {
		return nil, nil, err
	}
	report.Format = format
	report.Total = len(rows)
	return rows, report, nil
}

func (s *importerService) findCustomerByEmail(ctx context.Context, email string) (uuid.UUID, bool) {
	matches, err := s.customerRepo.Search(ctx, email, 5, 0)
	if err != nil {
		return uuid.Nil, false
	}
	for _, c := range matches {
		if c.Email != nil && strings.EqualFold(*c.Email, email) {
			return c.ID, true
		}
	}
	return uuid.Nil, false
}

func archiveObjectName(ctx context.Context, filename string) string {
	prefix := "control"
	if tenant, ok := tenancy.CurrentTenant(ctx); ok {
		prefix = tenant.Name
	}
	return fmt.Sprintf("%s/%s_%s", prefix, time.Now().UTC().Format("20060102T150405"), filename)
}

// parseTabular sniffs the format from the filename, falling back to CSV.
func parseTabular(filename string, data []byte) ([]map[string]string, string, error) {
	name := strings.ToLower(filename)
	if strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xlsm") {
		rows, err := parseXLSX(data)
		return rows, "xlsx", err
	}
	rows, err := parseCSV(data)
	return rows, "csv", err
}

func parseCSV(data []byte) ([]map[string]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	var rows []map[string]string
	for _, record := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if h == "" || i >= len(record) {
				continue
			}
			row[h] = strings.TrimSpace(record[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseXLSX(data []byte) ([]map[string]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	var rows []map[string]string
	for _, record := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if h == "" || i >= len(record) {
				continue
			}
			row[h] = strings.TrimSpace(record[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// normalizeRow maps loose header spellings onto canonical field names. The
// first matching alias wins per field.
func normalizeRow(row map[string]string, keyMap map[string][]string) map[string]string {
	lowered := make(map[string]string, len(row))
	for k, v := range row {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}

	out := make(map[string]string, len(keyMap))
	for target, candidates := range keyMap {
		for _, candidate := range candidates {
			if val, ok := lowered[candidate]; ok {
				out[target] = val
				break
			}
		}
	}
	return out
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
