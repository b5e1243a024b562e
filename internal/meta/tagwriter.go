package meta

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"

	"github.com/franz/albumhound/internal/util"
)

// TrackTags is what gets written into a finished download
type TrackTags struct {
	Artist      string
	AlbumArtist string
	Album       string
	Title       string
	Year        int
	Track       int
	TrackTotal  int
	Disc        int
	DiscTotal   int
	Type        string

	// MusicBrainz identifiers
	ArtistID    string
	AlbumID     string // release group
	ReleaseID   string
	RecordingID string
}

// CanWriteTags checks if we can write tags for this file format
func CanWriteTags(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".flac":
		return true
	}
	return false
}

// WriteTags writes tags (and the front cover when cover is non-empty)
// into an MP3 or FLAC file in place
func WriteTags(path string, t *TrackTags, cover []byte) error {
	if t == nil {
		return fmt.Errorf("tags are nil")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file does not exist: %w", err)
	}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		err = writeID3(path, t, cover)
	case ".flac":
		err = writeFLAC(path, t, cover)
	default:
		return fmt.Errorf("%w: tagging %s", util.ErrUnsupported, filepath.Ext(path))
	}
	if err != nil {
		return err
	}

	util.DebugLog("Wrote tags to: %s", path)
	return nil
}

func numberPair(n, total int) string {
	if n <= 0 {
		return ""
	}
	if total > 0 {
		return fmt.Sprintf("%d/%d", n, total)
	}
	return strconv.Itoa(n)
}

func writeID3(path string, t *TrackTags, cover []byte) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open id3 tag: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetArtist(t.Artist)
	tag.SetAlbum(t.Album)
	tag.SetTitle(t.Title)
	if t.Year > 0 {
		tag.SetYear(strconv.Itoa(t.Year))
	}

	text := func(id, value string) {
		if value != "" {
			tag.AddTextFrame(id, id3v2.EncodingUTF8, value)
		}
	}
	text("TPE2", t.AlbumArtist)
	text(tag.CommonID("Track number/Position in set"), numberPair(t.Track, t.TrackTotal))
	text(tag.CommonID("Part of a set"), numberPair(t.Disc, t.DiscTotal))

	txxx := func(desc, value string) {
		if value != "" {
			tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
				Encoding:    id3v2.EncodingUTF8,
				Description: desc,
				Value:       value,
			})
		}
	}
	txxx("MusicBrainz Artist Id", t.ArtistID)
	txxx("MusicBrainz Release Group Id", t.AlbumID)
	txxx("MusicBrainz Album Id", t.ReleaseID)
	txxx("MusicBrainz Release Track Id", t.RecordingID)
	txxx("MusicBrainz Album Type", strings.ToLower(t.Type))

	if len(cover) > 0 {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    imageMIME(cover),
			PictureType: id3v2.PTFrontCover,
			Description: "Front cover",
			Picture:     cover,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save id3 tag: %w", err)
	}
	return nil
}

func writeFLAC(path string, t *TrackTags, cover []byte) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to parse flac: %w", err)
	}

	// Drop existing comments, and pictures when a new cover is supplied
	kept := f.Meta[:0]
	for _, block := range f.Meta {
		if block.Type == flac.VorbisComment {
			continue
		}
		if block.Type == flac.Picture && len(cover) > 0 {
			continue
		}
		kept = append(kept, block)
	}
	f.Meta = kept

	comment := flacvorbis.New()
	add := func(field, value string) error {
		if value == "" {
			return nil
		}
		return comment.Add(field, value)
	}

	fields := []struct{ name, value string }{
		{flacvorbis.FIELD_ARTIST, t.Artist},
		{"ALBUMARTIST", t.AlbumArtist},
		{flacvorbis.FIELD_ALBUM, t.Album},
		{flacvorbis.FIELD_TITLE, t.Title},
		{flacvorbis.FIELD_TRACKNUMBER, positive(t.Track)},
		{"TRACKTOTAL", positive(t.TrackTotal)},
		{"DISCNUMBER", positive(t.Disc)},
		{"DISCTOTAL", positive(t.DiscTotal)},
		{flacvorbis.FIELD_DATE, positive(t.Year)},
		{"RELEASETYPE", strings.ToLower(t.Type)},
		{"MUSICBRAINZ_ARTISTID", t.ArtistID},
		{"MUSICBRAINZ_RELEASEGROUPID", t.AlbumID},
		{"MUSICBRAINZ_ALBUMID", t.ReleaseID},
		{"MUSICBRAINZ_TRACKID", t.RecordingID},
	}
	for _, fld := range fields {
		if err := add(fld.name, fld.value); err != nil {
			return fmt.Errorf("failed to add %s: %w", fld.name, err)
		}
	}

	block := comment.Marshal()
	f.Meta = append(f.Meta, &block)

	if len(cover) > 0 {
		pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front cover", cover, imageMIME(cover))
		if err != nil {
			return fmt.Errorf("failed to build picture block: %w", err)
		}
		picBlock := pic.Marshal()
		f.Meta = append(f.Meta, &picBlock)
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("failed to save flac: %w", err)
	}
	return nil
}

func positive(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func imageMIME(data []byte) string {
	if len(data) >= 8 && string(data[1:4]) == "PNG" {
		return "image/png"
	}
	return "image/jpeg"
}
