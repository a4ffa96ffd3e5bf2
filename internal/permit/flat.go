package permit

import (
	"encoding/json"
	"fmt"
)

// Flat is the interchange shape of a record used by persistence and export.
// Absent scalars are null, collections are JSON arrays (sets sorted).
type Flat struct {
	PermitNumber  string  `json:"permit_number"`
	PermitType    *string `json:"permit_type"`
	PermitSubtype *string `json:"permit_subtype"`
	Status        *string `json:"status"`

	Description     *string `json:"description"`
	WorkDescription *string `json:"work_description"`
	ProjectName     *string `json:"project_name"`

	AppliedDate        *string `json:"applied_date"`
	IssuedDate         *string `json:"issued_date"`
	FinalDate          *string `json:"final_date"`
	ExpirationDate     *string `json:"expiration_date"`
	LastInspectionDate *string `json:"last_inspection_date"`

	Address       *string  `json:"address"`
	ParsedAddress *Address `json:"parsed_address"`
	ParcelNumber  *string  `json:"parcel_number"`
	Subdivision   *string  `json:"subdivision"`
	Lot           *string  `json:"lot"`
	Block         *string  `json:"block"`
	LotSize       *string  `json:"lot_size"`

	OwnerName         *string `json:"owner_name"`
	ContractorName    *string `json:"contractor_name"`
	ContractorLicense *string `json:"contractor_license"`
	ApplicantName     *string `json:"applicant_name"`

	JobValue     *float64 `json:"job_value"`
	TotalFees    *float64 `json:"total_fees"`
	FeesPaid     *float64 `json:"fees_paid"`
	FeesDue      *float64 `json:"fees_due"`
	ItemizedFees []Fee    `json:"itemized_fees"`

	SquareFootage    *int    `json:"square_footage"`
	DwellingUnits    *int    `json:"dwelling_units"`
	Stories          *int    `json:"stories"`
	ConstructionType *string `json:"construction_type"`
	Zoning           *string `json:"zoning"`
	UseCode          *string `json:"use_code"`
	OccupancyType    *string `json:"occupancy_type"`

	RelatedPermits []string `json:"related_permits"`

	InspectionsCount   *int `json:"inspections_count"`
	PassedInspections  *int `json:"passed_inspections"`
	FailedInspections  *int `json:"failed_inspections"`
	PendingInspections *int `json:"pending_inspections"`

	CompletenessScore      float64  `json:"completeness_score"`
	ExtractionErrors       []string `json:"extraction_errors"`
	DataQualityFlags       []string `json:"data_quality_flags"`
	AddressValidationFlag  *string  `json:"address_validation_flag"`
	JobValueValidationFlag *string  `json:"job_value_validation_flag"`
	ScrapedTimestamp       string   `json:"scraped_timestamp"`
	PageStructureHash      *string  `json:"page_structure_hash"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ToFlat projects r into the interchange shape.
func ToFlat(r *Record) Flat {
	f := Flat{
		PermitNumber:  r.PermitNumber,
		PermitType:    nullable(r.PermitType),
		PermitSubtype: nullable(r.PermitSubtype),
		Status:        nullable(r.Status),

		Description:     nullable(r.Description),
		WorkDescription: nullable(r.WorkDescription),
		ProjectName:     nullable(r.ProjectName),

		AppliedDate:        nullable(r.AppliedDate),
		IssuedDate:         nullable(r.IssuedDate),
		FinalDate:          nullable(r.FinalDate),
		ExpirationDate:     nullable(r.ExpirationDate),
		LastInspectionDate: nullable(r.LastInspectionDate),

		Address:      nullable(r.Address),
		ParcelNumber: nullable(r.ParcelNumber),
		Subdivision:  nullable(r.Subdivision),
		Lot:          nullable(r.Lot),
		Block:        nullable(r.Block),
		LotSize:      nullable(r.LotSize),

		OwnerName:         nullable(r.OwnerName),
		ContractorName:    nullable(r.ContractorName),
		ContractorLicense: nullable(r.ContractorLicense),
		ApplicantName:     nullable(r.ApplicantName),

		JobValue:     copyFloat(r.JobValue),
		TotalFees:    copyFloat(r.TotalFees),
		FeesPaid:     copyFloat(r.FeesPaid),
		FeesDue:      copyFloat(r.FeesDue),
		ItemizedFees: append([]Fee{}, r.ItemizedFees...),

		SquareFootage:    copyInt(r.SquareFootage),
		DwellingUnits:    copyInt(r.DwellingUnits),
		Stories:          copyInt(r.Stories),
		ConstructionType: nullable(r.ConstructionType),
		Zoning:           nullable(r.Zoning),
		UseCode:          nullable(r.UseCode),
		OccupancyType:    nullable(r.OccupancyType),

		RelatedPermits: r.RelatedPermits.Sorted(),

		InspectionsCount:   copyInt(r.InspectionsCount),
		PassedInspections:  copyInt(r.PassedInspections),
		FailedInspections:  copyInt(r.FailedInspections),
		PendingInspections: copyInt(r.PendingInspections),

		CompletenessScore:      r.CompletenessScore,
		ExtractionErrors:       append([]string{}, r.ExtractionErrors...),
		DataQualityFlags:       r.DataQualityFlags.Sorted(),
		AddressValidationFlag:  nullable(r.AddressValidationFlag),
		JobValueValidationFlag: nullable(r.JobValueValidationFlag),
		ScrapedTimestamp:       r.ScrapedTimestamp,
		PageStructureHash:      nullable(r.PageStructureHash),
	}
	if !r.ParsedAddress.IsZero() {
		addr := r.ParsedAddress
		f.ParsedAddress = &addr
	}
	return f
}

// FromFlat reconstructs a record from its interchange shape.
func FromFlat(f Flat) *Record {
	r := &Record{
		PermitNumber:  f.PermitNumber,
		PermitType:    deref(f.PermitType),
		PermitSubtype: deref(f.PermitSubtype),
		Status:        deref(f.Status),

		Description:     deref(f.Description),
		WorkDescription: deref(f.WorkDescription),
		ProjectName:     deref(f.ProjectName),

		AppliedDate:        deref(f.AppliedDate),
		IssuedDate:         deref(f.IssuedDate),
		FinalDate:          deref(f.FinalDate),
		ExpirationDate:     deref(f.ExpirationDate),
		LastInspectionDate: deref(f.LastInspectionDate),

		Address:      deref(f.Address),
		ParcelNumber: deref(f.ParcelNumber),
		Subdivision:  deref(f.Subdivision),
		Lot:          deref(f.Lot),
		Block:        deref(f.Block),
		LotSize:      deref(f.LotSize),

		OwnerName:         deref(f.OwnerName),
		ContractorName:    deref(f.ContractorName),
		ContractorLicense: deref(f.ContractorLicense),
		ApplicantName:     deref(f.ApplicantName),

		JobValue:  copyFloat(f.JobValue),
		TotalFees: copyFloat(f.TotalFees),
		FeesPaid:  copyFloat(f.FeesPaid),
		FeesDue:   copyFloat(f.FeesDue),

		SquareFootage:    copyInt(f.SquareFootage),
		DwellingUnits:    copyInt(f.DwellingUnits),
		Stories:          copyInt(f.Stories),
		ConstructionType: deref(f.ConstructionType),
		Zoning:           deref(f.Zoning),
		UseCode:          deref(f.UseCode),
		OccupancyType:    deref(f.OccupancyType),

		RelatedPermits: NewSet(f.RelatedPermits...),

		InspectionsCount:   copyInt(f.InspectionsCount),
		PassedInspections:  copyInt(f.PassedInspections),
		FailedInspections:  copyInt(f.FailedInspections),
		PendingInspections: copyInt(f.PendingInspections),

		CompletenessScore:      f.CompletenessScore,
		DataQualityFlags:       NewSet(f.DataQualityFlags...),
		AddressValidationFlag:  deref(f.AddressValidationFlag),
		JobValueValidationFlag: deref(f.JobValueValidationFlag),
		ScrapedTimestamp:       f.ScrapedTimestamp,
		PageStructureHash:      deref(f.PageStructureHash),
	}
	if len(f.ItemizedFees) > 0 {
		r.ItemizedFees = append([]Fee{}, f.ItemizedFees...)
	}
	if len(f.ExtractionErrors) > 0 {
		r.ExtractionErrors = append([]string{}, f.ExtractionErrors...)
	}
	if f.ParsedAddress != nil {
		r.ParsedAddress = *f.ParsedAddress
	}
	return r
}

// MarshalFlat encodes r in the interchange shape.
func MarshalFlat(r *Record) ([]byte, error) {
	data, err := json.Marshal(ToFlat(r))
	if err != nil {
		return nil, fmt.Errorf("encoding permit %s: %w", r.PermitNumber, err)
	}
	return data, nil
}

// UnmarshalFlat decodes a record from the interchange shape.
func UnmarshalFlat(data []byte) (*Record, error) {
	var f Flat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding permit: %w", err)
	}
	if f.PermitNumber == "" {
		return nil, fmt.Errorf("decoding permit: missing permit_number")
	}
	return FromFlat(f), nil
}
