package permit

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// UnknownNumber is the permit number of a record whose page was never identified.
const UnknownNumber = "Unknown"

// Field names a canonical permit field. The value doubles as the interchange key.
type Field string

const (
	FieldPermitNumber       Field = "permit_number"
	FieldPermitType         Field = "permit_type"
	FieldPermitSubtype      Field = "permit_subtype"
	FieldStatus             Field = "status"
	FieldDescription        Field = "description"
	FieldWorkDescription    Field = "work_description"
	FieldProjectName        Field = "project_name"
	FieldAppliedDate        Field = "applied_date"
	FieldIssuedDate         Field = "issued_date"
	FieldFinalDate          Field = "final_date"
	FieldExpirationDate     Field = "expiration_date"
	FieldLastInspectionDate Field = "last_inspection_date"
	FieldAddress            Field = "address"
	FieldParcelNumber       Field = "parcel_number"
	FieldSubdivision        Field = "subdivision"
	FieldLot                Field = "lot"
	FieldBlock              Field = "block"
	FieldLotSize            Field = "lot_size"
	FieldOwnerName          Field = "owner_name"
	FieldContractorName     Field = "contractor_name"
	FieldContractorLicense  Field = "contractor_license"
	FieldApplicantName      Field = "applicant_name"
	FieldJobValue           Field = "job_value"
	FieldTotalFees          Field = "total_fees"
	FieldFeesPaid           Field = "fees_paid"
	FieldFeesDue            Field = "fees_due"
	FieldSquareFootage      Field = "square_footage"
	FieldDwellingUnits      Field = "dwelling_units"
	FieldStories            Field = "stories"
	FieldConstructionType   Field = "construction_type"
	FieldZoning             Field = "zoning"
	FieldUseCode            Field = "use_code"
	FieldOccupancyType      Field = "occupancy_type"
	FieldInspectionsCount   Field = "inspections_count"
	FieldPassedInspections  Field = "passed_inspections"
	FieldFailedInspections  Field = "failed_inspections"
	FieldPendingInspections Field = "pending_inspections"
)

// AllFields lists every scalar field in display order.
var AllFields = []Field{
	FieldPermitNumber, FieldPermitType, FieldPermitSubtype, FieldStatus,
	FieldDescription, FieldWorkDescription, FieldProjectName,
	FieldAppliedDate, FieldIssuedDate, FieldFinalDate, FieldExpirationDate, FieldLastInspectionDate,
	FieldAddress, FieldParcelNumber, FieldSubdivision, FieldLot, FieldBlock, FieldLotSize,
	FieldOwnerName, FieldContractorName, FieldContractorLicense, FieldApplicantName,
	FieldJobValue, FieldTotalFees, FieldFeesPaid, FieldFeesDue,
	FieldSquareFootage, FieldDwellingUnits, FieldStories,
	FieldConstructionType, FieldZoning, FieldUseCode, FieldOccupancyType,
	FieldInspectionsCount, FieldPassedInspections, FieldFailedInspections, FieldPendingInspections,
}

// Address is the structured decomposition of a permit's site address.
type Address struct {
	StreetNumber    string `json:"street_number"`
	StreetDirection string `json:"street_direction"`
	StreetName      string `json:"street_name"`
	StreetType      string `json:"street_type"`
	StreetSuffix    string `json:"street_suffix"`
	Unit            string `json:"unit"`
	City            string `json:"city"`
	State           string `json:"state"`
	Zip             string `json:"zip"`
	StreetAddress   string `json:"street_address"`
	ParsedType      string `json:"parsed_type,omitempty"`
}

// IsZero reports whether no component of the address is populated.
func (a Address) IsZero() bool {
	return a == Address{}
}

// AssembleStreet joins the populated street components into StreetAddress.
func (a *Address) AssembleStreet() {
	parts := []string{a.StreetNumber, a.StreetDirection, a.StreetName, a.StreetType, a.StreetSuffix}
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	a.StreetAddress = strings.Join(kept, " ")
}

// Fee is one line item of a permit's fee schedule.
type Fee struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
}

// Record is one extracted permit.
type Record struct {
	PermitNumber  string
	PermitType    string
	PermitSubtype string
	Status        string

	Description     string
	WorkDescription string
	ProjectName     string

	AppliedDate        string
	IssuedDate         string
	FinalDate          string
	ExpirationDate     string
	LastInspectionDate string

	Address       string
	ParsedAddress Address
	ParcelNumber  string
	Subdivision   string
	Lot           string
	Block         string
	LotSize       string

	OwnerName         string
	ContractorName    string
	ContractorLicense string
	ApplicantName     string

	JobValue     *float64
	TotalFees    *float64
	FeesPaid     *float64
	FeesDue      *float64
	ItemizedFees []Fee

	SquareFootage    *int
	DwellingUnits    *int
	Stories          *int
	ConstructionType string
	Zoning           string
	UseCode          string
	OccupancyType    string

	RelatedPermits Set

	InspectionsCount   *int
	PassedInspections  *int
	FailedInspections  *int
	PendingInspections *int

	CompletenessScore      float64
	ExtractionErrors       []string
	DataQualityFlags       Set
	AddressValidationFlag  string
	JobValueValidationFlag string
	ScrapedTimestamp       string
	PageStructureHash      string
}

// New returns an empty record for one scrape attempt. An empty number
// yields the UnknownNumber sentinel.
func New(number string) *Record {
	number = strings.TrimSpace(number)
	if number == "" {
		number = UnknownNumber
	}
	return &Record{
		PermitNumber:     number,
		RelatedPermits:   NewSet(),
		DataQualityFlags: NewSet(),
		ScrapedTimestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Identified reports whether the record carries a real permit number.
func (r *Record) Identified() bool {
	return r.PermitNumber != "" && r.PermitNumber != UnknownNumber
}

// AddError appends an extraction diagnostic.
func (r *Record) AddError(msg string) {
	r.ExtractionErrors = append(r.ExtractionErrors, msg)
}

// AddFlag adds a data quality flag. Flags are only ever added.
func (r *Record) AddFlag(flag string) {
	if r.DataQualityFlags == nil {
		r.DataQualityFlags = NewSet()
	}
	r.DataQualityFlags.Add(flag)
}

// AddRelated records a related permit number. The record's own number is
// never added. Returns whether the number was accepted.
func (r *Record) AddRelated(number string) bool {
	number = strings.TrimSpace(number)
	if number == "" || number == r.PermitNumber {
		return false
	}
	if r.RelatedPermits == nil {
		r.RelatedPermits = NewSet()
	}
	r.RelatedPermits.Add(number)
	return true
}

// TextField returns a pointer to the string-valued field f, or nil when f is
// not a string field.
func (r *Record) TextField(f Field) *string {
	switch f {
	case FieldPermitNumber:
		return &r.PermitNumber
	case FieldPermitType:
		return &r.PermitType
	case FieldPermitSubtype:
		return &r.PermitSubtype
	case FieldStatus:
		return &r.Status
	case FieldDescription:
		return &r.Description
	case FieldWorkDescription:
		return &r.WorkDescription
	case FieldProjectName:
		return &r.ProjectName
	case FieldAppliedDate:
		return &r.AppliedDate
	case FieldIssuedDate:
		return &r.IssuedDate
	case FieldFinalDate:
		return &r.FinalDate
	case FieldExpirationDate:
		return &r.ExpirationDate
	case FieldLastInspectionDate:
		return &r.LastInspectionDate
	case FieldAddress:
		return &r.Address
	case FieldParcelNumber:
		return &r.ParcelNumber
	case FieldSubdivision:
		return &r.Subdivision
	case FieldLot:
		return &r.Lot
	case FieldBlock:
		return &r.Block
	case FieldLotSize:
		return &r.LotSize
	case FieldOwnerName:
		return &r.OwnerName
	case FieldContractorName:
		return &r.ContractorName
	case FieldContractorLicense:
		return &r.ContractorLicense
	case FieldApplicantName:
		return &r.ApplicantName
	case FieldConstructionType:
		return &r.ConstructionType
	case FieldZoning:
		return &r.Zoning
	case FieldUseCode:
		return &r.UseCode
	case FieldOccupancyType:
		return &r.OccupancyType
	}
	return nil
}

// AmountField returns a pointer to the currency-valued field f, or nil.
func (r *Record) AmountField(f Field) **float64 {
	switch f {
	case FieldJobValue:
		return &r.JobValue
	case FieldTotalFees:
		return &r.TotalFees
	case FieldFeesPaid:
		return &r.FeesPaid
	case FieldFeesDue:
		return &r.FeesDue
	}
	return nil
}

// CountField returns a pointer to the integer-valued field f, or nil.
func (r *Record) CountField(f Field) **int {
	switch f {
	case FieldSquareFootage:
		return &r.SquareFootage
	case FieldDwellingUnits:
		return &r.DwellingUnits
	case FieldStories:
		return &r.Stories
	case FieldInspectionsCount:
		return &r.InspectionsCount
	case FieldPassedInspections:
		return &r.PassedInspections
	case FieldFailedInspections:
		return &r.FailedInspections
	case FieldPendingInspections:
		return &r.PendingInspections
	}
	return nil
}

// Text renders field f as a string. The empty string means absent.
func (r *Record) Text(f Field) string {
	if p := r.TextField(f); p != nil {
		return *p
	}
	if p := r.AmountField(f); p != nil {
		if *p == nil {
			return ""
		}
		return strconv.FormatFloat(**p, 'f', -1, 64)
	}
	if p := r.CountField(f); p != nil {
		if *p == nil {
			return ""
		}
		return strconv.Itoa(**p)
	}
	return ""
}

// String implements fmt.Stringer.
func (r *Record) String() string {
	return fmt.Sprintf("Record(permit_number=%q, address=%q, completeness=%.1f%%)",
		r.PermitNumber, r.Address, r.CompletenessScore)
}

// StructureHash fingerprints a detail page by its set of label texts, so a
// change in the portal's layout shows up as a new hash.
func StructureHash(labels []string) string {
	kept := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	sort.Strings(kept)

	h := md5.New()
	h.Write([]byte(strings.Join(kept, "|")))
	return fmt.Sprintf("%x", h.Sum(nil))
}
