package classifier

// Wall surface condition labels, in model output order.
const (
	LabelAlgae      = "Algae"
	LabelMajorCrack = "Major Crack"
	LabelMinorCrack = "Minor Crack"
	LabelPeeling    = "Peeling"
	LabelPlain      = "Plain (Normal)"
	LabelSpalling   = "Spalling"
	LabelStain      = "Stain"
)

// Labels lists the class names the model was trained on. The order must
// match the model output tensor.
var Labels = []string{
	LabelAlgae,
	LabelMajorCrack,
	LabelMinorCrack,
	LabelPeeling,
	LabelPlain,
	LabelSpalling,
	LabelStain,
}

// NumClasses is the number of output classes of the defect model.
const NumClasses = 7

// IsDefect reports whether a label denotes an actual surface defect, as
// opposed to a plain wall or an unknown result.
func IsDefect(label string) bool {
	switch label {
	case LabelPlain, "Plain", "Normal", "Unknown", "":
		return false
	default:
		return true
	}
}
