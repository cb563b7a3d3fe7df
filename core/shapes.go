package core

// ShapeKind enumerates the drawable primitives.
type ShapeKind int

const (
	NoShape ShapeKind = iota
	Dot
	Line
	Rectangle
	Ellipse
	Text
	Arc
	ArcChord
	PieSlice
	Polyline
	Spline
	Polygon
	Blob
)

var shapeNames = map[string]ShapeKind{
	"Dot":       Dot,
	"Line":      Line,
	"Rectangle": Rectangle,
	"Ellipse":   Ellipse,
	"Text":      Text,
	"Arc":       Arc,
	"ArcChord":  ArcChord,
	"PieSlice":  PieSlice,
	"Polyline":  Polyline,
	"Spline":    Spline,
	"Polygon":   Polygon,
	"Blob":      Blob,
}

func (k ShapeKind) String() string {
	for name, kind := range shapeNames {
		if kind == k {
			return name
		}
	}
	return "<no shape>"
}

// closed reports whether the primitive's outline is a closed path.
// Polygon and Blob are the closed variants of Polyline and Spline.
func (k ShapeKind) closed() bool {
	switch k {
	case Rectangle, Ellipse, ArcChord, PieSlice, Polygon, Blob:
		return true
	}
	return false
}

// shapeProps returns the property schema of a primitive kind. Arc, ArcChord
// and PieSlice extend the Ellipse schema with angular fields; Polygon and
// Blob share the Polyline/Spline schema.
func shapeProps(k ShapeKind) map[string]Type {
	props := map[string]Type{
		"position": typePoint,
		"fill":     typeString,
		"outline":  typeString,
		"visible":  typeBoolean,
	}

	switch k {
	case Line:
		props["to"] = typeVector
		props["width"] = typeNumber
	case Rectangle, Ellipse:
		props["width"] = typeNumber
		props["height"] = typeNumber
	case Arc, ArcChord, PieSlice:
		props["width"] = typeNumber
		props["height"] = typeNumber
		props["start"] = typeNumber
		props["extent"] = typeNumber
	case Text:
		props["text"] = typeString
		props["font"] = typeString
		props["size"] = typeNumber
	case Polyline, Spline, Polygon, Blob:
		props["points"] = Type{Kind: ArrayType, Elem: &typePoint}
		props["width"] = typeNumber
	}

	return props
}

// viewProps is the property schema of a View.
var viewProps = map[string]Type{
	"origin":     typePoint,
	"width":      typeNumber,
	"height":     typeNumber,
	"title":      typeString,
	"background": typeString,
}

// defaultValue is the zero Value for each property type, used when a
// declaration's `with` block leaves a property unset.
func defaultValue(t Type) Value {
	switch t.Kind {
	case IntegerType:
		return IntValue(0)
	case NumberType:
		return NumberValue(0)
	case StringType:
		return StringValue("")
	case BooleanType:
		return BoolValue(false)
	case PointType:
		return PointValue{}
	case VectorType:
		return VectorValue{}
	case TimeType:
		return TimeValue(0)
	case ArrayType:
		return ListValue{}
	}
	return nil
}
