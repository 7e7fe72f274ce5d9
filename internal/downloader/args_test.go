package downloader

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"ytdash/internal/model"
)

func TestFormatSelector(t *testing.T) {
	tests := []struct {
		name string
		opts model.DownloadOptions
		want string
	}{
		{
			name: "explicit format wins",
			opts: model.DownloadOptions{Kind: model.KindAudio, FormatID: "137+bestaudio"},
			want: "137+bestaudio",
		},
		{
			name: "audio",
			opts: model.DownloadOptions{Kind: model.KindAudio, MaxHeight: 720},
			want: "bestaudio/best",
		},
		{
			name: "video mp4 capped",
			opts: model.DownloadOptions{Kind: model.KindVideo, MaxHeight: 720, Container: model.ContainerMP4},
			want: "bestvideo[height<=720][ext=mp4]/bestvideo[height<=720]",
		},
		{
			name: "video any uncapped",
			opts: model.DownloadOptions{Kind: model.KindVideo, Container: model.ContainerAny},
			want: "bestvideo",
		},
		{
			name: "video+audio mp4",
			opts: model.DownloadOptions{Kind: model.KindVideoAudio, MaxHeight: 1080, Container: model.ContainerMP4},
			want: "bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/best[height<=1080][ext=mp4]/bestvideo[height<=1080]+bestaudio/best[height<=1080]/best",
		},
		{
			name: "video+audio any",
			opts: model.DownloadOptions{Kind: model.KindVideoAudio, Container: model.ContainerAny},
			want: "bestvideo+bestaudio/best/best",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSelector(tt.opts))
		})
	}
}

func TestBuildArgs_VideoAudio(t *testing.T) {
	opts := model.DefaultDownloadOptions()
	opts.EmbedSubs = true
	opts.EmbedThumbnail = true

	args := BuildArgs("https://youtu.be/abc", "/tmp/w", opts, "/opt/ffmpeg")

	assert.Equal(t, []string{"--", "https://youtu.be/abc"}, args[len(args)-2:])
	assertFlag(t, args, "-o", filepath.Join("/tmp/w", "%(title)s.%(ext)s"))
	assertFlag(t, args, "--merge-output-format", "mp4")
	assertFlag(t, args, "--ffmpeg-location", "/opt/ffmpeg")
	assertFlag(t, args, "--print", finalPathTemplate)
	assertFlag(t, args, "--add-header", "User-Agent:"+UserAgent)
	assert.Contains(t, args, "--newline")
	assert.Contains(t, args, "--embed-subs")
	assert.Contains(t, args, "--embed-thumbnail")
	assert.Contains(t, args, downloadTemplate)
	assert.Contains(t, args, postprocessTemplate)
	assert.NotContains(t, args, "-x")
	assert.NotContains(t, args, "--write-subs")
}

func TestBuildArgs_Audio(t *testing.T) {
	opts := model.DownloadOptions{
		Kind:         model.KindAudio,
		AudioFormat:  "m4a",
		AudioQuality: "192",
		EmbedSubs:    true,
		WriteSubs:    true,
		CustomName:   "my song",
	}

	args := BuildArgs("https://youtu.be/abc", "/tmp/w", opts, "")

	assert.Contains(t, args, "-x")
	assertFlag(t, args, "--audio-format", "m4a")
	assertFlag(t, args, "--audio-quality", "192K")
	assertFlag(t, args, "-o", filepath.Join("/tmp/w", "my_song.%(ext)s"))
	assert.Contains(t, args, "--write-subs")
	assert.NotContains(t, args, "--embed-subs")
	assert.NotContains(t, args, "--ffmpeg-location")
	assert.NotContains(t, args, "--merge-output-format")
}

func TestAudioQuality(t *testing.T) {
	assert.Equal(t, "0", audioQuality("best"))
	assert.Equal(t, "0", audioQuality(""))
	assert.Equal(t, "320K", audioQuality("320"))
}

func assertFlag(t *testing.T, args []string, flag, want string) {
	t.Helper()
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == want {
			return
		}
	}
	t.Errorf("flag %s %q not found in %v", flag, want, args)
}
