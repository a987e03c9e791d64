package cases

// ID tipe untuk CaseRecord
type CaseID string

// Placeholder values dipakai kalau kolom tidak ketemu di file import
const (
	UnknownDevice   = "unknown"
	DefaultCategory = "umum"
)

// CaseRecord adalah satu entry riwayat perbaikan yang sudah dinormalisasi.
// Invariant: FaultDescription selalu non-empty untuk record yang lolos import.
type CaseRecord struct {
	ID               CaseID `json:"id"`
	DeviceName       string `json:"device_name"`
	Category         string `json:"category"`
	FaultDescription string `json:"fault_description"`
	SolutionText     string `json:"solution_text,omitempty"`
}

// HasSolution reports whether a recorded fix exists for this case.
func (c CaseRecord) HasSolution() bool {
	return c.SolutionText != ""
}
