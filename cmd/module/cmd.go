package main

import (
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"

	"github.com/erh/sfmproject/picker"
)

func main() {
	module.ModularMain(
		resource.APIModel{API: generic.API, Model: picker.PickerModel},
	)
}
