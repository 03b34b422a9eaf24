package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"crmsaas/internal/models"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCustomerService struct {
	created []*CustomerRequest
	err     error
}

func (s *stubCustomerService) Create(ctx context.Context, req *CustomerRequest, actor *uuid.UUID) (*models.Customer, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, req)
	return &models.Customer{ID: uuid.New(), Name: req.Name}, nil
}

func (s *stubCustomerService) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return nil, errors.New("not implemented")
}

func (s *stubCustomerService) Update(ctx context.Context, id uuid.UUID, req *CustomerRequest, actor *uuid.UUID) (*models.Customer, error) {
	return nil, errors.New("not implemented")
}

func (s *stubCustomerService) Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error {
	return errors.New("not implemented")
}

func (s *stubCustomerService) List(ctx context.Context, limit, offset int) ([]*models.Customer, error) {
	return nil, nil
}

func (s *stubCustomerService) Search(ctx context.Context, term string, limit, offset int) ([]*models.Customer, error) {
	return nil, nil
}

func (s *stubCustomerService) Count(ctx context.Context) (int, error) { return 0, nil }

type stubLeadService struct {
	created []*LeadRequest
}

func (s *stubLeadService) Create(ctx context.Context, req *LeadRequest, actor *uuid.UUID) (*models.Lead, error) {
	s.created = append(s.created, req)
	return &models.Lead{ID: uuid.New(), Name: req.Name}, nil
}

func (s *stubLeadService) GetByID(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	return nil, errors.New("not implemented")
}

func (s *stubLeadService) Update(ctx context.Context, id uuid.UUID, req *LeadRequest, actor *uuid.UUID) (*models.Lead, error) {
	return nil, errors.New("not implemented")
}

func (s *stubLeadService) UpdateStatus(ctx context.Context, id uuid.UUID, status string, actor *uuid.UUID) (*models.Lead, error) {
	return nil, errors.New("not implemented")
}

func (s *stubLeadService) Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error {
	return errors.New("not implemented")
}

func (s *stubLeadService) List(ctx context.Context, status string, limit, offset int) ([]*models.Lead, error) {
	return nil, nil
}

func (s *stubLeadService) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Lead, error) {
	return nil, nil
}

func (s *stubLeadService) Count(ctx context.Context) (int, error) { return 0, nil }

func (s *stubLeadService) AddCallSummary(ctx context.Context, leadID uuid.UUID, req *CallSummaryRequest, actor *uuid.UUID) (*models.LeadCallSummary, error) {
	return nil, errors.New("not implemented")
}

func (s *stubLeadService) ListCallSummaries(ctx context.Context, leadID uuid.UUID, limit, offset int) ([]*models.LeadCallSummary, error) {
	return nil, nil
}

type stubCustomerSearch struct {
	customers []*models.Customer
}

func (s *stubCustomerSearch) Create(ctx context.Context, customer *models.Customer) error {
	return nil
}

func (s *stubCustomerSearch) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return nil, errors.New("not found")
}

func (s *stubCustomerSearch) Update(ctx context.Context, customer *models.Customer) error {
	return nil
}

func (s *stubCustomerSearch) List(ctx context.Context, limit, offset int) ([]*models.Customer, error) {
	return nil, nil
}

func (s *stubCustomerSearch) Search(ctx context.Context, term string, limit, offset int) ([]*models.Customer, error) {
	return s.customers, nil
}

func (s *stubCustomerSearch) Count(ctx context.Context) (int, error) { return 0, nil }

func importerFixture(customers *stubCustomerService, leads *stubLeadService, search *stubCustomerSearch) ImporterService {
	return NewImporterService(customers, leads, search, nil, "crm-imports", zap.NewNop())
}

func tenantCtx() context.Context {
	return tenancy.WithTenant(context.Background(), &models.Tenant{
		ID: uuid.New(), Name: "acme", DatabaseName: "crm_tenant_acme",
	})
}

func TestImportCustomers_CSVWithAliasHeaders(t *testing.T) {
	customers := &stubCustomerService{}
	svc := importerFixture(customers, &stubLeadService{}, &stubCustomerSearch{})

	csv := strings.Join([]string{
		"Full_Name,E-Mail,Mobile,Organization",
		"Acme Industries,contact@acme.test,555-0100,Acme",
		",missing@name.test,555-0101,Nameless",
		"Globex Corp,info@globex.test,,Globex",
	}, "\n")

	report, err := svc.ImportCustomers(tenantCtx(), "customers.csv", strings.NewReader(csv), nil)
	require.NoError(t, err)

	assert.Equal(t, "csv", report.Format)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 2, report.Errors[0].Row)
	assert.Equal(t, "missing name", report.Errors[0].Reason)

	require.Len(t, customers.created, 2)
	assert.Equal(t, "Acme Industries", customers.created[0].Name)
	assert.Equal(t, "contact@acme.test", *customers.created[0].Email)
	assert.Equal(t, "Acme", *customers.created[0].Company)
	assert.Nil(t, customers.created[1].Phone)
}

func TestImportCustomers_ServiceErrorsBecomeRowErrors(t *testing.T) {
	customers := &stubCustomerService{err: errors.New("duplicate email")}
	svc := importerFixture(customers, &stubLeadService{}, &stubCustomerSearch{})

	csv := "name,email\nAcme,contact@acme.test\n"
	report, err := svc.ImportCustomers(tenantCtx(), "customers.csv", strings.NewReader(csv), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Imported)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Reason, "duplicate email")
}

func TestImportLeads_ResolvesCustomerByEmail(t *testing.T) {
	customerID := uuid.New()
	email := "Contact@Acme.Test"
	search := &stubCustomerSearch{customers: []*models.Customer{
		{ID: uuid.New(), Name: "Wrong", Email: stringAddr("other@acme.test")},
		{ID: customerID, Name: "Acme", Email: stringAddr("contact@acme.test")},
	}}
	leads := &stubLeadService{}
	svc := importerFixture(&stubCustomerService{}, leads, search)

	csv := "lead_name,client_email,channel,status\nBig Deal," + email + ",referral,contacted\n"
	report, err := svc.ImportLeads(tenantCtx(), "leads.csv", strings.NewReader(csv), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Imported)
	require.Len(t, leads.created, 1)
	got := leads.created[0]
	assert.Equal(t, "Big Deal", got.Name)
	assert.Equal(t, "contacted", got.Status)
	assert.Equal(t, "referral", *got.Source)
	require.NotNil(t, got.CustomerID)
	assert.Equal(t, customerID, *got.CustomerID)
}

func TestNormalizeRow_FirstAliasWins(t *testing.T) {
	row := map[string]string{
		"Email":  "primary@x.test",
		"E-Mail": "secondary@x.test",
		"NAME":   "Acme",
	}
	fields := normalizeRow(row, customerKeyMap)
	assert.Equal(t, "primary@x.test", fields["email"])
	assert.Equal(t, "Acme", fields["name"])
}

func TestParseTabular_DefaultsToCSV(t *testing.T) {
	rows, format, err := parseTabular("export.txt", []byte("name,city\nAcme,Pune\n"))
	require.NoError(t, err)
	assert.Equal(t, "csv", format)
	require.Len(t, rows, 1)
	assert.Equal(t, "Pune", rows[0]["city"])
}

func TestParseCSV_RaggedRowsTolerated(t *testing.T) {
	rows, err := parseCSV([]byte("name,email,phone\nAcme,contact@acme.test\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme", rows[0]["name"])
	_, hasPhone := rows[0]["phone"]
	assert.False(t, hasPhone)
}

func TestArchiveObjectName_PrefixedByTenant(t *testing.T) {
	name := archiveObjectName(tenantCtx(), "customers.csv")
	assert.True(t, strings.HasPrefix(name, "acme/"))
	assert.True(t, strings.HasSuffix(name, "_customers.csv"))

	name = archiveObjectName(context.Background(), "customers.csv")
	assert.True(t, strings.HasPrefix(name, "control/"))
}

func stringAddr(s string) *string { return &s }
