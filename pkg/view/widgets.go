package view

// BaseProperties are declared by every built-in type.
var BaseProperties = []Property{
	Prop("width", KindNumber),
	Prop("height", KindNumber),
	Prop("x", KindNumber),
	Prop("y", KindNumber),
	Prop("backgroundColor", KindAny),
	Prop("border", KindObject),
	Prop("corners", KindAny),
	Prop("padding", KindObject),
	Prop("layoutConfig", KindObject),
	Prop("alpha", KindNumber),
	Prop("hidden", KindBool),
	Prop("onClick", KindCallback),
	Prop("identifier", KindString),
}

// Built-in view types.
var (
	TypeView    = Default.MustRegister("View", BaseProperties...)
	TypeStack   = TypeView.MustExtend("Stack", Prop("children", KindArray))
	TypeRoot    = TypeStack.MustExtend("Root")
	TypeVLayout = TypeView.MustExtend("VLayout", linearProps...)
	TypeHLayout = TypeView.MustExtend("HLayout", linearProps...)
	TypeText    = TypeView.MustExtend("Text",
		Prop("text", KindString),
		Prop("textSize", KindNumber),
		Prop("textColor", KindAny),
		Prop("textAlignment", KindNumber),
		Prop("maxLines", KindNumber),
		Prop("fontStyle", KindString),
	)
	TypeImage = TypeView.MustExtend("Image",
		Prop("imageUrl", KindString),
		Prop("imageBase64", KindString),
		Prop("scaleType", KindNumber),
		Prop("isBlur", KindBool),
		Prop("placeHolderColor", KindAny),
		Prop("loadCallback", KindCallback),
	)
)

var linearProps = []Property{
	Prop("children", KindArray),
	Prop("space", KindNumber),
	Prop("gravity", KindNumber),
}

// LayoutSpec says how a dimension is sized.
type LayoutSpec int

const (
	LayoutJust LayoutSpec = iota // use width/height as given
	LayoutFit                    // wrap content
	LayoutMost                   // fill parent
)

// Edges is a four-sided inset.
type Edges struct {
	Left   float64 `json:"left,omitempty"`
	Right  float64 `json:"right,omitempty"`
	Top    float64 `json:"top,omitempty"`
	Bottom float64 `json:"bottom,omitempty"`
}

// LayoutConfig is the value of the layoutConfig property.
type LayoutConfig struct {
	WidthSpec  LayoutSpec `json:"widthSpec"`
	HeightSpec LayoutSpec `json:"heightSpec"`
	Margin     *Edges     `json:"margin,omitempty"`
	Alignment  int        `json:"alignment,omitempty"`
	Weight     int        `json:"weight,omitempty"`
}

// FitLayout wraps content in both dimensions.
func FitLayout() LayoutConfig {
	return LayoutConfig{WidthSpec: LayoutFit, HeightSpec: LayoutFit}
}

// MostLayout fills the parent in both dimensions.
func MostLayout() LayoutConfig {
	return LayoutConfig{WidthSpec: LayoutMost, HeightSpec: LayoutMost}
}

// Config carries the base properties. Zero fields are left unset.
type Config struct {
	Width           float64
	Height          float64
	BackgroundColor string
	Layout          *LayoutConfig
	Padding         *Edges
	Corners         float64
	Alpha           *float64
	Hidden          bool
	Identifier      string
	OnClick         Callback
}

// Apply writes the non-zero fields of c to v.
func (c Config) Apply(v *View) {
	if c.Width != 0 {
		v.Set("width", c.Width)
	}
	if c.Height != 0 {
		v.Set("height", c.Height)
	}
	if c.BackgroundColor != "" {
		v.Set("backgroundColor", c.BackgroundColor)
	}
	if c.Layout != nil {
		v.Set("layoutConfig", *c.Layout)
	}
	if c.Padding != nil {
		v.Set("padding", *c.Padding)
	}
	if c.Corners != 0 {
		v.Set("corners", c.Corners)
	}
	if c.Alpha != nil {
		v.Set("alpha", *c.Alpha)
	}
	if c.Hidden {
		v.Set("hidden", true)
	}
	if c.Identifier != "" {
		v.Set("identifier", c.Identifier)
	}
	if c.OnClick != nil {
		v.Set("onClick", c.OnClick)
	}
}

// NewRoot creates the root of a panel's tree.
func NewRoot() *Container {
	return NewContainer(TypeRoot)
}

// NewStack creates a stack that overlays its children.
func NewStack(cfg Config, children ...Node) *Container {
	s := NewContainer(TypeStack)
	cfg.Apply(s.View)
	s.Add(children...)
	return s
}

// LinearConfig configures VLayout and HLayout.
type LinearConfig struct {
	Config
	Space   float64
	Gravity int
}

func newLinear(t *Type, cfg LinearConfig, children []Node) *Container {
	l := NewContainer(t)
	cfg.Apply(l.View)
	if cfg.Space != 0 {
		l.Set("space", cfg.Space)
	}
	if cfg.Gravity != 0 {
		l.Set("gravity", cfg.Gravity)
	}
	l.Add(children...)
	return l
}

// NewVLayout creates a vertical linear layout.
func NewVLayout(cfg LinearConfig, children ...Node) *Container {
	return newLinear(TypeVLayout, cfg, children)
}

// NewHLayout creates a horizontal linear layout.
func NewHLayout(cfg LinearConfig, children ...Node) *Container {
	return newLinear(TypeHLayout, cfg, children)
}

// TextConfig configures a Text view.
type TextConfig struct {
	Config
	Text          string
	TextSize      float64
	TextColor     string
	TextAlignment int
	MaxLines      int
}

// NewText creates a text view. Text is always set, even when empty.
func NewText(cfg TextConfig) *View {
	v := New(TypeText)
	cfg.Apply(v)
	v.Set("text", cfg.Text)
	if cfg.TextSize != 0 {
		v.Set("textSize", cfg.TextSize)
	}
	if cfg.TextColor != "" {
		v.Set("textColor", cfg.TextColor)
	}
	if cfg.TextAlignment != 0 {
		v.Set("textAlignment", cfg.TextAlignment)
	}
	if cfg.MaxLines != 0 {
		v.Set("maxLines", cfg.MaxLines)
	}
	return v
}

// ImageConfig configures an Image view.
type ImageConfig struct {
	Config
	ImageURL         string
	ScaleType        int
	PlaceHolderColor string
	OnLoad           Callback
}

// NewImage creates an image view.
func NewImage(cfg ImageConfig) *View {
	v := New(TypeImage)
	cfg.Apply(v)
	if cfg.ImageURL != "" {
		v.Set("imageUrl", cfg.ImageURL)
	}
	if cfg.ScaleType != 0 {
		v.Set("scaleType", cfg.ScaleType)
	}
	if cfg.PlaceHolderColor != "" {
		v.Set("placeHolderColor", cfg.PlaceHolderColor)
	}
	if cfg.OnLoad != nil {
		v.Set("loadCallback", cfg.OnLoad)
	}
	return v
}
