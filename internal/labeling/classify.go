package labeling

import (
	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/truth"
)

// PDG codes referenced by the classification rules.
const (
	pdgElectron = 11
	pdgMuon     = 13
	pdgPhoton   = 22
	pdgNeutron  = 2112
)

// Classifier assigns a creation-process category and a semantic class to
// a particle. parent is nil for roots. A class of label.Unknown marks the
// particle as ambiguous so it may inherit from an ancestor.
type Classifier interface {
	Classify(rec truth.ParticleRecord, parent *truth.ParticleRecord) (label.ProcessType, label.SemanticType)
}

// ProcessClassifier derives the category from the PDG code and the
// creation process name, then maps the category to a semantic class.
type ProcessClassifier struct{}

// Classify implements Classifier.
func (ProcessClassifier) Classify(rec truth.ParticleRecord, parent *truth.ParticleRecord) (label.ProcessType, label.SemanticType) {
	pt := ProcessTypeOf(rec.PDG, rec.Process)
	var parentPDG int32
	if parent != nil {
		parentPDG = parent.PDG
	}
	return pt, SemanticOf(pt, rec.PDG, parentPDG)
}

// ProcessTypeOf categorizes a particle by PDG code and creation process.
func ProcessTypeOf(pdg int32, process string) label.ProcessType {
	switch {
	case pdg == 0:
		return label.ProcessInvalid
	case pdg == pdgPhoton:
		return label.ProcessPhoton
	case abs32(pdg) == pdgElectron:
		switch process {
		case "muIoni", "hIoni", "muPairProd":
			return label.ProcessDelta
		case "muMinusCaptureAtRest", "muPlusCaptureAtRest", "Decay":
			return label.ProcessDecay
		case "compt":
			return label.ProcessCompton
		case "phot":
			return label.ProcessPhotoElectron
		case "eIoni":
			return label.ProcessIonization
		case "conv":
			return label.ProcessConversion
		case "primary":
			return label.ProcessPrimary
		default:
			return label.ProcessOtherShower
		}
	case pdg == pdgNeutron:
		return label.ProcessNeutron
	default:
		return label.ProcessTrack
	}
}

// SemanticOf maps a process category to a semantic class. parentPDG is
// consulted only to tell Michel electrons from other decay electrons.
func SemanticOf(pt label.ProcessType, pdg, parentPDG int32) label.SemanticType {
	switch pt {
	case label.ProcessInvalid:
		return label.Unknown
	case label.ProcessDelta:
		return label.Delta
	case label.ProcessNeutron:
		return label.LEScatter
	}
	if a := abs32(pdg); a == pdgElectron || a == pdgPhoton {
		switch pt {
		case label.ProcessComptonHE, label.ProcessPhoton, label.ProcessPrimary,
			label.ProcessConversion, label.ProcessOtherShowerHE:
			return label.Shower
		case label.ProcessDecay:
			if abs32(parentPDG) == pdgMuon {
				return label.Michel
			}
			return label.Shower
		default:
			return label.LEScatter
		}
	}
	return label.Track
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
