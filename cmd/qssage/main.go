// Command qssage runs the QR-code URL scanner API or scans single URLs.
//
//	qssage serve --config qssage.yaml
//	qssage scan bit.ly/3xYz --backend nethttp
package main

import "github.com/raysh454/qssage/internal/cli"

func main() {
	cli.Execute()
}
