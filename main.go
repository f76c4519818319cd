// weather-sorter prepares and uses weather image datasets.
//
// The scrub command removes grayscale images from a dataset laid out as
// dataset/<split>/<category>/<image>, either deleting them or moving them into a
// mirrored backup tree. The train command fits a classifier on features extracted by a
// pretrained backbone, and predict labels a single image with the fitted classifier.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/briancolinger/weather-sorter/cmd"
)

// Entry point of the program.
func main() {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)

	cmd.Execute()
}
