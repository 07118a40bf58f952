// Dump the contents of a ZMDB metadata blob as a human-readable library listing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	zune "github.com/kjarmicki/zunebridge/src"
)

var familyNames = map[string]zune.ZMDBFamily{
	"keel":     zune.ZMDBKeel,
	"scorpius": zune.ZMDBScorpius,
	"draco":    zune.ZMDBDraco,
	"pavo":     zune.ZMDBPavo,
}

func main() {
	var familyFlag = pflag.StringP("family", "f", "keel", "ZMDB family: keel, scorpius, draco, or pavo.")
	var trackScanStart = pflag.IntP("track-scan-start", "t", 0, "Override the classic-family track scan start offset. 0 uses the built-in default.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "zmdbdump - parse a ZMDB blob and print the resulting library.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: zmdbdump [options] <blob-file>\n\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if len(pflag.Args()) != 1 {
		pflag.Usage()
		os.Exit(1)
	}

	var family, ok = familyNames[*familyFlag]
	if !ok {
		fmt.Fprintf(os.Stderr, "zmdbdump: unknown family %q\n", *familyFlag)
		os.Exit(1)
	}

	var blob, readErr = os.ReadFile(pflag.Arg(0))
	if readErr != nil {
		fmt.Fprintf(os.Stderr, "zmdbdump: %v\n", readErr)
		os.Exit(1)
	}

	var extractor = zune.ZMDBExtractor{Family: family, TrackScanStart: *trackScanStart}
	var lib, parseErr = extractor.Parse(blob)
	if parseErr != nil {
		fmt.Fprintf(os.Stderr, "zmdbdump: %v\n", parseErr)
		os.Exit(1)
	}

	if validateErr := lib.Validate(); validateErr != nil {
		fmt.Fprintf(os.Stderr, "zmdbdump: library failed validation: %v\n", validateErr)
	}

	printLibrary(lib)
}

func printLibrary(lib *zune.Library) {
	for _, artist := range lib.Artists {
		fmt.Printf("Artist %d: %s\n", artist.AtomID, artist.Name)
		for _, album := range lib.AlbumsByArtist(artist.AtomID) {
			fmt.Printf("  Album %d: %s\n", album.AtomID, album.Title)
			for _, track := range lib.TracksOnAlbum(album.AtomID) {
				fmt.Printf("    %2d.%02d %-40s (%d ms)\n", track.NormalizedDiscNumber(), track.TrackNumber, track.Title, track.DurationMS)
			}
		}
	}

	fmt.Printf("\n%d artists, %d albums, %d tracks, %d playlists\n",
		len(lib.Artists), len(lib.Albums), len(lib.Tracks), len(lib.Playlists))
}
