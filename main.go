package main

import (
	"converse/cmd/app"
)

func main() {
	app.GetApp().LetsGo()
}
