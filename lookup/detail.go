package lookup

import (
	"context"
	"fmt"

	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/opendata/entities"
)

// medicine resolves a validated code, REST first. Fields the REST record
// leaves empty are filled from the local table when it is loaded.
func (s *Service) medicine(ctx context.Context, operation, code string) (*entities.Medicine, string, error) {
	if s.api != nil {
		remote, err := s.api.GetMedicine(ctx, code)
		if err == nil && remote != nil {
			if loadErr := s.ensureLoaded(ctx); loadErr != nil {
				logging.Warn("Open data unavailable, serving REST record only", "sukl_code", code, "error", loadErr)
			} else if local, ok := s.store.GetMedicine(code); ok {
				mergeMedicine(remote, &local)
			}
			recordSource(operation, SourceREST)
			return remote, SourceREST, nil
		}
		logFallback(operation, err)
	}

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, "", err
	}
	local, ok := s.store.GetMedicine(code)
	if !ok {
		return nil, "", fmt.Errorf("medicine %s: %w", code, errs.ErrNotFound)
	}
	recordSource(operation, SourceCSV)
	return &local, SourceCSV, nil
}

// localMedicine resolves a code from the open data only.
func (s *Service) localMedicine(ctx context.Context, code string) (*entities.Medicine, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	m, ok := s.store.GetMedicine(code)
	if !ok {
		return nil, fmt.Errorf("medicine %s: %w", code, errs.ErrNotFound)
	}
	return &m, nil
}

func mergeMedicine(dst, src *entities.Medicine) {
	fill := func(d *string, v string) {
		if *d == "" {
			*d = v
		}
	}
	fill(&dst.Name, src.Name)
	fill(&dst.Supplement, src.Supplement)
	fill(&dst.Strength, src.Strength)
	fill(&dst.Form, src.Form)
	fill(&dst.Package, src.Package)
	fill(&dst.Route, src.Route)
	fill(&dst.PackageType, src.PackageType)
	fill(&dst.RegistrationNumber, src.RegistrationNumber)
	fill(&dst.RegistrationStatus, src.RegistrationStatus)
	fill(&dst.Holder, src.Holder)
	fill(&dst.ATC, src.ATC)
	fill(&dst.Dispensation, src.Dispensation)
	fill(&dst.Addiction, src.Addiction)
	fill(&dst.Doping, src.Doping)
	if dst.Availability == "" || dst.Availability == entities.AvailabilityUnknown {
		dst.Availability = src.Availability
	}
}

// GetMedicineDetail returns the full record of a medicine with its current
// price. It returns errs.ErrNotFound when no source knows the code.
func (s *Service) GetMedicineDetail(ctx context.Context, suklCode string) (*MedicineDetail, error) {
	code, err := s.validator.ValidateSUKLCode(suklCode)
	if err != nil {
		return nil, err
	}

	m, source, err := s.medicine(ctx, "detail", code)
	if err != nil {
		return nil, err
	}

	detail := &MedicineDetail{
		Medicine:    *m,
		IsAvailable: m.Availability != entities.AvailabilityUnavailable,
		IsMarketed:  true,
		IsNarcotic:  m.Addiction != "",
		IsDoping:    m.Doping != "",
		Source:      source,
		LastUpdated: s.store.GetLastUpdated(),
	}

	if has, maxPrice, reimbursement, copay, ok := s.priceOf(code); ok {
		detail.HasReimbursement = has
		detail.MaxPrice = maxPrice
		detail.ReimbursementAmount = reimbursement
		detail.PatientCopay = copay
	}

	if m.ATC != "" {
		detail.ATCName = s.atcName(m.ATC)
	}
	if names, ok := s.store.GetDocumentNames(code); ok {
		detail.PILAvailable = names.PIL != ""
		detail.SPCAvailable = names.SPC != ""
	}

	return detail, nil
}

func (s *Service) atcName(code string) string {
	for _, g := range s.store.GetATCGroups() {
		if g.Code == code {
			return g.Name
		}
	}
	return ""
}
