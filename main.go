package main

import "github.com/miltos211/iCloudImmichCleanSync/cmd"

func main() {
	cmd.Execute()
}
