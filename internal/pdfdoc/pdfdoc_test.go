package pdfdoc

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"mobile-pdf/internal/decoder"
	"mobile-pdf/pkg/geometry"

	"github.com/gogpu/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"seehuhn.de/go/pdf"
)

// buildPDF assembles a PDF file with a correct cross-reference table.
func buildPDF(objects ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func stream(content string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
}

func twoPageDoc() []byte {
	return buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 /MediaBox [0 0 200 100] >>",
		"<< /Type /Page /Parent 2 0 R /Resources << >> /Contents 5 0 R >>",
		"<< /Type /Page /Parent 2 0 R /Resources << >> /Contents 5 0 R /CropBox [10 10 110 60] /Rotate 90 >>",
		stream("0 0 1 rg 10 10 50 30 re f"),
	)
}

func open(t *testing.T, data []byte) decoder.Document {
	t.Helper()
	doc, err := New().Open(context.Background(), decoder.Source{Name: "test.pdf", Data: data})
	require.NoError(t, err)
	t.Cleanup(func() { doc.Close() })
	return doc
}

func TestOpenAndSizes(t *testing.T) {
	doc := open(t, twoPageDoc())
	require.Equal(t, 2, doc.PageCount())

	p1, err := doc.Page(context.Background(), 1)
	require.NoError(t, err)
	defer p1.Release()
	assert.Equal(t, geometry.NewSize(200, 100), p1.NaturalSize(1))
	assert.Equal(t, geometry.NewSize(600, 300), p1.NaturalSize(3))

	p2, err := doc.Page(context.Background(), 2)
	require.NoError(t, err)
	defer p2.Release()
	assert.Equal(t, geometry.NewSize(100, 200), p2.NaturalSize(2), "crop box, rotated")

	_, err = doc.Page(context.Background(), 3)
	assert.Error(t, err)
}

func TestRenderFillsPath(t *testing.T) {
	doc := open(t, twoPageDoc())
	p, err := doc.Page(context.Background(), 1)
	require.NoError(t, err)

	dc := gg.NewContext(200, 100)
	defer dc.Close()
	require.NoError(t, p.Render(context.Background(), dc, 1))

	img := dc.Image()
	r, g, b, _ := img.At(35, 75).RGBA()
	assert.Less(t, r, uint32(0x4000), "inside the rectangle")
	assert.Less(t, g, uint32(0x4000))
	assert.Greater(t, b, uint32(0xc000))

	r, g, b, _ = img.At(150, 20).RGBA()
	assert.Greater(t, r, uint32(0xc000), "background is white")
	assert.Greater(t, g, uint32(0xc000))
	assert.Greater(t, b, uint32(0xc000))
}

func TestRenderCancelled(t *testing.T) {
	doc := open(t, twoPageDoc())
	p, err := doc.Page(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dc := gg.NewContext(10, 10)
	defer dc.Close()
	assert.ErrorIs(t, p.Render(ctx, dc, 0.05), decoder.ErrRenderAborted)
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := New().Open(context.Background(), decoder.Source{Name: "junk.pdf", Data: []byte("not a pdf")})
	var de *decoder.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "junk.pdf", de.Source)
}

func TestClosedDocument(t *testing.T) {
	doc, err := New().Open(context.Background(), decoder.Source{Data: twoPageDoc()})
	require.NoError(t, err)
	require.NoError(t, doc.Close())
	require.NoError(t, doc.Close())
	_, err = doc.Page(context.Background(), 1)
	assert.Error(t, err)
}

func pdfRect(llx, lly, urx, ury float64) pdf.Rectangle {
	return pdf.Rectangle{LLx: llx, LLy: lly, URx: urx, URy: ury}
}

func TestDeviceMatrixRotation(t *testing.T) {
	p := &Page{box: pdfRect(10, 10, 110, 60)}
	tests := []struct {
		rotate int
		x, y   float64 // user space
		wx, wy float64 // device space at scale 1
	}{
		{0, 10, 60, 0, 0},
		{0, 110, 10, 100, 50},
		{90, 10, 10, 0, 0},
		{90, 10, 60, 50, 0},
		{180, 110, 10, 0, 0},
		{270, 10, 60, 0, 100},
	}
	for _, tt := range tests {
		p.rotate = tt.rotate
		gx, gy := p.deviceMatrix(1).Apply(tt.x, tt.y)
		assert.InDelta(t, tt.wx, gx, 1e-9, "rotate %d (%v,%v)", tt.rotate, tt.x, tt.y)
		assert.InDelta(t, tt.wy, gy, 1e-9, "rotate %d (%v,%v)", tt.rotate, tt.x, tt.y)
	}
}
