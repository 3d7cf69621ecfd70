package main

import "payrun/internal/app/server"

func main() {
	server.Run()
}
