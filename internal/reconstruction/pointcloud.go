package reconstruction

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ShashidharM0118/sitelenz/internal/errors"
)

// Point is a single colored point in the reconstructed cloud.
type Point struct {
	X, Y, Z float64
	R, G, B uint8
}

// PointCloud holds the points of a reconstructed model.
type PointCloud struct {
	Points []Point
}

type plyProperty struct {
	name string
	typ  string
}

type plyHeader struct {
	format      string // "ascii" or "binary_little_endian"
	vertexCount int
	properties  []plyProperty
	skipBefore  []plyElement // elements declared before vertex
	skipAfter   []plyElement // elements declared after vertex
}

type plyElement struct {
	count      int
	properties []plyProperty
}

// LoadPLY reads a PLY point cloud in ascii or binary little-endian
// format. Only the vertex element is consumed; faces and other elements
// are ignored.
func LoadPLY(path string) (*PointCloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("reconstruction").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	header, err := parsePLYHeader(reader)
	if err != nil {
		return nil, err
	}

	var points []Point
	switch header.format {
	case "ascii":
		points, err = readASCIIVertices(reader, header)
	case "binary_little_endian":
		points, err = readBinaryVertices(reader, header)
	default:
		return nil, errors.Newf("unsupported ply format: %s", header.format).
			Component("reconstruction").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err != nil {
		return nil, err
	}

	return &PointCloud{Points: points}, nil
}

func parsePLYHeader(reader *bufio.Reader) (*plyHeader, error) {
	magic, err := readHeaderLine(reader)
	if err != nil || magic != "ply" {
		return nil, errors.Newf("not a ply file").
			Component("reconstruction").
			Category(errors.CategoryFileIO).
			Build()
	}

	header := &plyHeader{vertexCount: -1}
	var current *plyElement
	inVertex := false

	for {
		line, err := readHeaderLine(reader)
		if err != nil {
			return nil, errors.Newf("truncated ply header").
				Component("reconstruction").
				Category(errors.CategoryFileIO).
				Build()
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return nil, invalidPLY("malformed format line")
			}
			header.format = fields[1]
		case "comment", "obj_info":
			// ignore
		case "element":
			if len(fields) < 3 {
				return nil, invalidPLY("malformed element line")
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, invalidPLY("bad element count")
			}
			if fields[1] == "vertex" {
				header.vertexCount = count
				inVertex = true
				current = nil
			} else {
				inVertex = false
				el := plyElement{count: count}
				if header.vertexCount < 0 {
					header.skipBefore = append(header.skipBefore, el)
					current = &header.skipBefore[len(header.skipBefore)-1]
				} else {
					header.skipAfter = append(header.skipAfter, el)
					current = &header.skipAfter[len(header.skipAfter)-1]
				}
			}
		case "property":
			if len(fields) < 3 {
				return nil, invalidPLY("malformed property line")
			}
			if fields[1] == "list" {
				if len(fields) < 5 {
					return nil, invalidPLY("malformed list property")
				}
				prop := plyProperty{name: fields[4], typ: "list:" + fields[2] + ":" + fields[3]}
				if inVertex {
					return nil, invalidPLY("list property on vertex element")
				}
				if current != nil {
					current.properties = append(current.properties, prop)
				}
				continue
			}
			prop := plyProperty{name: fields[2], typ: fields[1]}
			if inVertex {
				header.properties = append(header.properties, prop)
			} else if current != nil {
				current.properties = append(current.properties, prop)
			}
		case "end_header":
			if header.vertexCount < 0 {
				return nil, invalidPLY("no vertex element")
			}
			return header, nil
		}
	}
}

func invalidPLY(msg string) error {
	return errors.Newf("invalid ply: %s", msg).
		Component("reconstruction").
		Category(errors.CategoryFileIO).
		Build()
}

// readHeaderLine reads one header line, tolerating \r\n endings.
func readHeaderLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func readASCIIVertices(reader *bufio.Reader, header *plyHeader) ([]Point, error) {
	// skip elements declared before vertex, one line each
	for _, el := range header.skipBefore {
		for i := 0; i < el.count; i++ {
			if _, err := reader.ReadString('\n'); err != nil {
				return nil, invalidPLY("truncated element data")
			}
		}
	}

	points := make([]Point, 0, header.vertexCount)
	for i := 0; i < header.vertexCount; i++ {
		line, err := reader.ReadString('\n')
		if err != nil && !(err == io.EOF && line != "") {
			return nil, invalidPLY("truncated vertex data")
		}
		fields := strings.Fields(line)
		if len(fields) < len(header.properties) {
			return nil, invalidPLY("short vertex line")
		}

		var p Point
		for j, prop := range header.properties {
			v, err := strconv.ParseFloat(fields[j], 64)
			if err != nil {
				return nil, invalidPLY("bad vertex value")
			}
			assignProperty(&p, prop.name, v)
		}
		points = append(points, p)
	}
	return points, nil
}

func readBinaryVertices(reader *bufio.Reader, header *plyHeader) ([]Point, error) {
	if len(header.skipBefore) > 0 {
		// elements with list properties have no fixed stride
		return nil, invalidPLY("unsupported element before vertex in binary file")
	}

	points := make([]Point, 0, header.vertexCount)
	for i := 0; i < header.vertexCount; i++ {
		var p Point
		for _, prop := range header.properties {
			v, err := readBinaryScalar(reader, prop.typ)
			if err != nil {
				return nil, invalidPLY("truncated vertex data")
			}
			assignProperty(&p, prop.name, v)
		}
		points = append(points, p)
	}
	return points, nil
}

func readBinaryScalar(reader io.Reader, typ string) (float64, error) {
	switch typ {
	case "float", "float32":
		var v float32
		if err := binary.Read(reader, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return float64(v), nil
	case "double", "float64":
		var v float64
		if err := binary.Read(reader, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return v, nil
	case "uchar", "uint8", "char", "int8":
		var v uint8
		if err := binary.Read(reader, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return float64(v), nil
	case "short", "int16", "ushort", "uint16":
		var v uint16
		if err := binary.Read(reader, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return float64(v), nil
	case "int", "int32", "uint", "uint32":
		var v uint32
		if err := binary.Read(reader, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return float64(v), nil
	default:
		return 0, fmt.Errorf("unsupported property type: %s", typ)
	}
}

func assignProperty(p *Point, name string, v float64) {
	switch name {
	case "x":
		p.X = v
	case "y":
		p.Y = v
	case "z":
		p.Z = v
	case "red", "r":
		p.R = clampColor(v)
	case "green", "g":
		p.G = clampColor(v)
	case "blue", "b":
		p.B = clampColor(v)
	}
}

func clampColor(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// SavePLY writes the cloud as binary little-endian PLY with colors.
func (pc *PointCloud) SavePLY(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return wrapFileError(err, path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "ply\nformat binary_little_endian 1.0\n")
	fmt.Fprintf(w, "element vertex %d\n", len(pc.Points))
	fmt.Fprint(w, "property float x\nproperty float y\nproperty float z\n")
	fmt.Fprint(w, "property uchar red\nproperty uchar green\nproperty uchar blue\n")
	fmt.Fprint(w, "end_header\n")

	buf := make([]byte, 15)
	for i := range pc.Points {
		p := &pc.Points[i]
		binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(p.Y)))
		binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(p.Z)))
		buf[12] = p.R
		buf[13] = p.G
		buf[14] = p.B
		if _, err := w.Write(buf); err != nil {
			return wrapFileError(err, path)
		}
	}
	if err := w.Flush(); err != nil {
		return wrapFileError(err, path)
	}
	return nil
}

// SaveOBJ writes the cloud as an OBJ vertex list. Colors use the common
// "v x y z r g b" extension with components in [0,1].
func (pc *PointCloud) SaveOBJ(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return wrapFileError(err, path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprint(w, "# point cloud export\n")
	for i := range pc.Points {
		p := &pc.Points[i]
		fmt.Fprintf(w, "v %.6f %.6f %.6f %.4f %.4f %.4f\n",
			p.X, p.Y, p.Z,
			float64(p.R)/255, float64(p.G)/255, float64(p.B)/255)
	}
	if err := w.Flush(); err != nil {
		return wrapFileError(err, path)
	}
	return nil
}

func wrapFileError(err error, path string) error {
	return errors.New(err).
		Component("reconstruction").
		Category(errors.CategoryFileIO).
		Context("path", path).
		Build()
}
