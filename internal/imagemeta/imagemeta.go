// Package imagemeta reads the one piece of image metadata the pipeline
// cares about: when a photo was captured. Capture times order a player's
// poses during renaming; they are a hint, never a requirement, so every
// failure mode here degrades to the zero time instead of an error.
package imagemeta

import (
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// EXIF datetime spellings. Some cameras write the date alone.
const (
	exifTimeLayout = "2006:01:02 15:04:05"
	exifDateLayout = "2006:01:02"
)

// CaptureTime returns when the photo at path was taken, from EXIF
// DateTimeOriginal with DateTimeDigitized and DateTime as fallbacks.
// Missing files, non-images, and absent or corrupt metadata all yield the
// zero time; callers fall back to file-name order.
func CaptureTime(path string) time.Time {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}
	}

	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		if t := parseTag(tag); !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

func parseTag(tag *tiff.Tag) time.Time {
	if tag == nil {
		return time.Time{}
	}
	s, err := tag.StringVal()
	if err != nil {
		return time.Time{}
	}
	return parseTimeString(s)
}

func parseTimeString(s string) time.Time {
	if t, err := time.Parse(exifTimeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(exifDateLayout, s); err == nil {
		return t
	}
	return time.Time{}
}
