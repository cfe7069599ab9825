// Package label defines the per-event output of the labeling engine:
// semantic and process classes, labeled particles and the Label that ties
// them to an ImageMeta.
package label

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/voxlabel/internal/truth"
)

// NoParent is the parent id carried by root particles.
const NoParent truth.TrackID = math.MaxUint32

// SemanticType is the per-voxel segmentation class.
type SemanticType uint8

const (
	Shower SemanticType = iota
	Track
	Michel
	Delta
	LEScatter
	Ghost
	Unknown
)

var semanticNames = [...]string{"Shower", "Track", "Michel", "Delta", "LEScatter", "Ghost", "Unknown"}

func (s SemanticType) String() string {
	if int(s) < len(semanticNames) {
		return semanticNames[s]
	}
	return fmt.Sprintf("SemanticType(%d)", uint8(s))
}

// ParseSemanticType accepts a class name (case-insensitive).
func ParseSemanticType(s string) (SemanticType, error) {
	for i, name := range semanticNames {
		if strings.EqualFold(name, s) {
			return SemanticType(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown semantic type %q", s)
}

// DefaultSemanticPriority ranks the classes for voxels shared by particles
// of different classes, highest first.
func DefaultSemanticPriority() []SemanticType {
	return []SemanticType{Shower, Track, Michel, Delta, LEScatter, Ghost}
}

// Prioritize returns whichever of a and b appears first in priority. When
// neither is listed the lower class wins.
func Prioritize(a, b SemanticType, priority []SemanticType) SemanticType {
	if a == b {
		return a
	}
	for _, s := range priority {
		if s == a {
			return a
		}
		if s == b {
			return b
		}
	}
	if b < a {
		return b
	}
	return a
}

// ProcessType is the creation-process category used to derive a semantic
// class and to decide which particles are merged.
type ProcessType uint8

const (
	ProcessInvalid ProcessType = iota
	ProcessTrack
	ProcessNeutron
	ProcessPhoton
	ProcessPrimary
	ProcessCompton
	ProcessComptonHE
	ProcessDelta
	ProcessConversion
	ProcessIonization
	ProcessPhotoElectron
	ProcessDecay
	ProcessOtherShower
	ProcessOtherShowerHE
)

var processNames = [...]string{
	"Invalid", "Track", "Neutron", "Photon", "Primary", "Compton", "ComptonHE",
	"Delta", "Conversion", "Ionization", "PhotoElectron", "Decay", "OtherShower", "OtherShowerHE",
}

func (p ProcessType) String() string {
	if int(p) < len(processNames) {
		return processNames[p]
	}
	return fmt.Sprintf("ProcessType(%d)", uint8(p))
}
