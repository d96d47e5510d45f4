package chart

import (
	"bytes"
	"fmt"
	"io"

	"github.com/chrissnell/birthchart/pkg/ephemeris"
)

// nameWidth is the number of characters of a body name kept in a row.
const nameWidth = 7

// RenderOptions control the text layout.
type RenderOptions struct {
	// Extended appends placements, the lunar phase and aspects.
	Extended bool
}

// Render writes c in the fixed-column text layout. Identical charts render
// to identical bytes. When the chart has no houses the cusp section is
// omitted entirely.
func Render(w io.Writer, c *Chart, opts RenderOptions) error {
	var b bytes.Buffer
	in := c.Input

	fmt.Fprintf(&b, "Date and time in UT: day=%d mon=%d year=%d decimal hour=%f\n", in.Day, in.Month, in.Year, in.Hour)
	fmt.Fprintf(&b, "\tdecimal geographical coordinates lat=%f, long=%f\n", in.Latitude, in.Longitude)
	fmt.Fprintf(&b, "\nJulday of birth = %f\n", c.JulianDay)

	b.WriteString("Planet\tecl.long.\tecl.lat.\tdist. AU\tspeed deg/day\n")
	for _, r := range c.Bodies {
		fmt.Fprintf(&b, "%s\t", shortName(r.Name))
		if !r.OK() {
			fmt.Fprintf(&b, "iret=%d, %s\n", r.Code, r.Error)
			continue
		}
		p := r.Position
		fmt.Fprintf(&b, "%10.6f\t%9.6f\t%9.6f\t%9.6f\n", p.Longitude, p.Latitude, p.Distance, p.LongitudeSpeed)
	}

	if h := c.Houses; h != nil {
		fmt.Fprintf(&b, "\nAscendant %10.6f\tMC %10.6f\n", h.Ascendant, h.MC)
		fmt.Fprintf(&b, "House system %s\n", ephemeris.HouseSystemName(h.System))
		for i := 1; i <= 12; i++ {
			fmt.Fprintf(&b, "cusp %2d\t%10.6f\n", i, h.Cusps[i])
		}
		b.WriteString("\n")

		if opts.Extended {
			renderExtended(&b, c)
		}
	}

	_, err := w.Write(b.Bytes())
	return err
}

func renderExtended(b *bytes.Buffer, c *Chart) {
	b.WriteString("Placements\n")
	for _, r := range c.Bodies {
		if r.Placement == nil {
			continue
		}
		pl := r.Placement
		retro := ""
		if pl.Retrograde {
			retro = "\tR"
		}
		fmt.Fprintf(b, "%s\t%s %s\thouse %2d%s\n", shortName(r.Name), pl.Sign.Abbrev(), FormatDMS(pl.SignDegree), pl.House, retro)
	}

	if l := c.Lunar; l != nil {
		fmt.Fprintf(b, "\nLunar phase %s\telongation %8.4f\tillumination %6.2f%%\n", l.Name.Title(), l.Elongation, l.IlluminationPct)
	}

	if len(c.Aspects) > 0 {
		b.WriteString("\nAspects\n")
		for _, a := range c.Aspects {
			fmt.Fprintf(b, "%s\t%s\t%s\torb %7.4f\n", shortName(a.BodyA), shortName(a.BodyB), a.Type, a.Orb)
		}
	}
	b.WriteString("\n")
}

// shortName keeps at most nameWidth characters of a body name.
func shortName(name string) string {
	r := []rune(name)
	if len(r) > nameWidth {
		return string(r[:nameWidth])
	}
	return name
}
