package features

import "fmt"

// ParamsVersion tags the parameter set below. Artifacts trained against a
// different set must not be scored with this extractor.
const ParamsVersion = "crysense-features/v1"

// Params fixes every knob of the analysis chain.
type Params struct {
	Version       string  `json:"version" yaml:"version" msgpack:"version"`
	SampleRate    int     `json:"sample_rate" yaml:"sample_rate" msgpack:"sample_rate"`
	NFFT          int     `json:"n_fft" yaml:"n_fft" msgpack:"n_fft"`
	HopLength     int     `json:"hop_length" yaml:"hop_length" msgpack:"hop_length"`
	WinLength     int     `json:"win_length" yaml:"win_length" msgpack:"win_length"`
	NMFCC         int     `json:"n_mfcc" yaml:"n_mfcc" msgpack:"n_mfcc"`
	NMFCCMels     int     `json:"n_mfcc_mels" yaml:"n_mfcc_mels" msgpack:"n_mfcc_mels"`
	NChroma       int     `json:"n_chroma" yaml:"n_chroma" msgpack:"n_chroma"`
	NMels         int     `json:"n_mels" yaml:"n_mels" msgpack:"n_mels"`
	NBands        int     `json:"n_bands" yaml:"n_bands" msgpack:"n_bands"`
	ContrastFMin  float64 `json:"contrast_fmin" yaml:"contrast_fmin" msgpack:"contrast_fmin"`
	RollPercent   float64 `json:"roll_percent" yaml:"roll_percent" msgpack:"roll_percent"`
	DeltaWidth    int     `json:"delta_width" yaml:"delta_width" msgpack:"delta_width"`
	TopDB         float64 `json:"top_db" yaml:"top_db" msgpack:"top_db"`
	CQTHop        int     `json:"cqt_hop" yaml:"cqt_hop" msgpack:"cqt_hop"`
	CQTOctaves    int     `json:"cqt_octaves" yaml:"cqt_octaves" msgpack:"cqt_octaves"`
	CQTBinsPerOct int     `json:"cqt_bins_per_octave" yaml:"cqt_bins_per_octave" msgpack:"cqt_bins_per_octave"`
}

// ParamsV1 is the parameter set the deployed classifiers were trained with.
var ParamsV1 = Params{
	Version:       ParamsVersion,
	SampleRate:    16000,
	NFFT:          1024,
	HopLength:     160,
	WinLength:     400,
	NMFCC:         40,
	NMFCCMels:     128,
	NChroma:       12,
	NMels:         13,
	NBands:        7,
	ContrastFMin:  100,
	RollPercent:   0.95,
	DeltaWidth:    9,
	TopDB:         80,
	CQTHop:        512,
	CQTOctaves:    7,
	CQTBinsPerOct: 36,
}

// Validate reports whether p can drive the extractor.
func (p Params) Validate() error {
	switch {
	case p.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", p.SampleRate)
	case p.NFFT <= 0 || p.HopLength <= 0 || p.WinLength <= 0:
		return fmt.Errorf("fft sizes must be positive")
	case p.WinLength > p.NFFT:
		return fmt.Errorf("window length %d exceeds fft size %d", p.WinLength, p.NFFT)
	case p.NMFCC <= 0 || p.NMFCC > p.NMFCCMels:
		return fmt.Errorf("n_mfcc must be in (0, %d], got %d", p.NMFCCMels, p.NMFCC)
	case p.NChroma <= 0 || p.NMels <= 0 || p.NBands <= 0:
		return fmt.Errorf("band counts must be positive")
	case p.DeltaWidth < 3 || p.DeltaWidth%2 == 0:
		return fmt.Errorf("delta width must be odd and at least 3, got %d", p.DeltaWidth)
	case p.RollPercent <= 0 || p.RollPercent >= 1:
		return fmt.Errorf("roll percent must be in (0, 1), got %f", p.RollPercent)
	case p.CQTHop <= 0 || p.CQTOctaves <= 0 || p.CQTBinsPerOct%p.NChroma != 0:
		return fmt.Errorf("invalid constant-Q settings")
	}
	return nil
}

// Equal reports whether two parameter sets produce identical features.
func (p Params) Equal(o Params) bool {
	return p == o
}
