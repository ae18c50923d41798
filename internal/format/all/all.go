// Package all registers every built-in format adaptor with the default
// dispatch registry. Import for side effects:
//
//	import _ "github.com/poselab/poselab/internal/format/all"
package all

import (
	_ "github.com/poselab/poselab/internal/format/alphatracker"
	_ "github.com/poselab/poselab/internal/format/deeplabcut"
	_ "github.com/poselab/poselab/internal/format/jsonlabels"
	_ "github.com/poselab/poselab/internal/format/ndx"
	_ "github.com/poselab/poselab/internal/format/nix"
	_ "github.com/poselab/poselab/internal/format/plp"
)
