package ioptron

// Model identifies the mount hardware, as reported by :MountInfo#.
type Model int

const (
	ModelUnknown Model = iota
	ModelIEQ30Pro
	ModelCEM60
	ModelCEM60EC
	ModelCEM120
	ModelCEM120EC
	ModelCEM120EC2
)

var modelCodes = map[string]Model{
	"0030": ModelIEQ30Pro,
	"0060": ModelCEM60,
	"0061": ModelCEM60EC,
	"0120": ModelCEM120,
	"0121": ModelCEM120EC,
	"0122": ModelCEM120EC2,
}

// ModelFromCode maps a 4 character :MountInfo# response to a Model.
func ModelFromCode(code string) Model {
	if m, ok := modelCodes[code]; ok {
		return m
	}
	return ModelUnknown
}

// Code returns the wire code for m, or "" for ModelUnknown.
func (m Model) Code() string {
	for code, model := range modelCodes {
		if model == m {
			return code
		}
	}
	return ""
}

func (m Model) String() string {
	switch m {
	case ModelIEQ30Pro:
		return "iEQ30 Pro"
	case ModelCEM60:
		return "CEM60"
	case ModelCEM60EC:
		return "CEM60-EC"
	case ModelCEM120:
		return "CEM120"
	case ModelCEM120EC:
		return "CEM120-EC"
	case ModelCEM120EC2:
		return "CEM120-EC2"
	}
	return "Unsupported Mount"
}

func (m Model) isCEM120() bool {
	return m == ModelCEM120 || m == ModelCEM120EC || m == ModelCEM120EC2
}

// RefractionCorrection reports whether the mount applies refraction
// correction itself.
func (m Model) RefractionCorrection() bool {
	return m.isCEM120()
}

// BaudRate is the serial speed the model's RS-232 port runs at.
func (m Model) BaudRate() int {
	if m.isCEM120() {
		return 115200
	}
	return 9600
}
