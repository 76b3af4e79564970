package constants

// Step is the current_step value written to the progress record.
type Step string

const (
	StepExtract               Step = "extract"
	StepConvert               Step = "convert"
	StepMerge                 Step = "merge"
	StepMergingComplete       Step = "merging_complete"
	StepConvertingToPDF       Step = "converting_to_pdf"
	StepPDFConversionComplete Step = "pdf_conversion_complete"
	StepComplete              Step = "complete"
	StepError                 Step = "error"
)

// Phase boundaries on the 0..100 scale. Values between two boundaries are
// interpolated by the phase that owns the range.
const (
	PercentError           = 0
	PercentExtract         = 10
	PercentConvert         = 30
	PercentConvertEnd      = 50
	PercentMerge           = 50
	PercentMergeEnd        = 80
	PercentMergingComplete = 80
	PercentConvertingToPDF = 85
	PercentPDFComplete     = 95
	PercentComplete        = 100
)

// ConvertProgressEvery is the file interval for convert-phase updates; only
// batches larger than this emit intermediate records.
const ConvertProgressEvery = 10

// Interpolate maps done/total onto [from, to]. total <= 0 yields from.
func Interpolate(from, to, done, total int) int {
	if total <= 0 {
		return from
	}
	if done > total {
		done = total
	}
	return from + done*(to-from)/total
}
