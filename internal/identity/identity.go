// Package identity generates class-identity training targets from track
// assignments: one-hot class vectors and confidence-weighted class maps.
// All transforms are deterministic and side-effect free.
package identity

import (
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/poselab/poselab/internal/labels"
)

// MakeClassVectors builds binary class vectors of shape
// (len(classInds), nClasses). A class index can stand for a track index;
// index -1 means no class and yields an all-zero row.
func MakeClassVectors(classInds []int, nClasses int) *mat.Dense {
	out := mat.NewDense(len(classInds), nClasses, nil)
	for i, c := range classInds {
		if c >= 0 && c < nClasses {
			out.Set(i, c, 1)
		}
	}
	return out
}

// MakeClassMaps generates per-class identity maps from instance-wise
// confidence maps. confmaps holds one (height, width) grid per instance;
// the result holds one grid per class. Pixels covered by several
// instances weigh each class by the instance's relative contribution;
// values at or below threshold are zeroed; overlapping contributions to
// the same class reduce by max.
func MakeClassMaps(confmaps []*mat.Dense, classInds []int, nClasses int, threshold float64) []*mat.Dense {
	if len(confmaps) == 0 {
		return nil
	}
	h, w := confmaps[0].Dims()

	out := make([]*mat.Dense, nClasses)
	for c := range out {
		out[c] = mat.NewDense(h, w, nil)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			total := 0.0
			for _, cm := range confmaps {
				total += cm.At(y, x)
			}
			if total == 0 {
				continue
			}
			for i, cm := range confmaps {
				v := cm.At(y, x)
				if v <= threshold {
					continue
				}
				c := classInds[i]
				if c < 0 || c >= nClasses {
					continue
				}
				mask := v / total
				if mask > out[c].At(y, x) {
					out[c].Set(y, x, mask)
				}
			}
		}
	}
	return out
}

// TrackInds returns the class index of each instance on a frame: its
// track's position in the collection, or -1 when untracked.
func TrackInds(lb *labels.Labels, lf *labels.LabeledFrame) []int {
	out := make([]int, len(lf.Instances))
	for i, inst := range lf.Instances {
		out[i] = lb.TrackIndex(inst.Track)
	}
	return out
}

// MapConcurrent applies fn to every element of in, preserving order.
// Elements are independent, so the transform fans out across goroutines;
// nothing mutable is shared between them.
func MapConcurrent[T, U any](in []T, fn func(T) U) []U {
	out := make([]U, len(in))
	var wg sync.WaitGroup
	wg.Add(len(in))
	for i := range in {
		go func(i int) {
			defer wg.Done()
			out[i] = fn(in[i])
		}(i)
	}
	wg.Wait()
	return out
}
