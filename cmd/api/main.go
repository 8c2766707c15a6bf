package main

import (
	"go.uber.org/fx"

	"github.com/Vesta-Code/vesta/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
