// Package sfmproject maps clicked pixels of a COLMAP reconstruction onto its 3D surface.
package sfmproject

import (
	"go.viam.com/rdk/resource"
)

// NamespaceFamily is the model family every resource in this module registers under.
var NamespaceFamily = resource.NewModelFamily("erh", "sfmproject")
