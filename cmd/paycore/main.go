package main

import (
	"github.com/drivelane/paycore/internal/server"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		server.Module,
	).Run()
}
