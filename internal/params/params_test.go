package params

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		keys  []string
		want  map[string]Value
	}{
		{
			name:  "scalars",
			query: "a=1&b=2",
			keys:  []string{"a", "b"},
			want:  map[string]Value{"a": Scalar("1"), "b": Scalar("2")},
		},
		{
			name:  "repeat promotes to list",
			query: "a=1&a=2",
			keys:  []string{"a"},
			want:  map[string]Value{"a": List("1", "2")},
		},
		{
			name:  "sparse indexed placement",
			query: "a[0]=x&a[2]=y",
			keys:  []string{"a"},
			want: map[string]Value{"a": {Kind: KindList, Items: []Element{
				{Text: "x", Set: true}, {}, {Text: "y", Set: true},
			}}},
		},
		{
			name:  "append order",
			query: "a[]=x&a[]=y",
			keys:  []string{"a"},
			want:  map[string]Value{"a": List("x", "y")},
		},
		{
			name:  "empty",
			query: "",
			keys:  []string{},
			want:  map[string]Value{},
		},
		{
			name:  "valueless flag",
			query: "debug&chipId=7",
			keys:  []string{"debug", "chipId"},
			want:  map[string]Value{"debug": Flag(), "chipId": Scalar("7")},
		},
		{
			name:  "leading question mark and fragment",
			query: "?chipId=42#top",
			keys:  []string{"chipId"},
			want:  map[string]Value{"chipId": Scalar("42")},
		},
		{
			name:  "empty names are skipped",
			query: "a=1&&=3&b=2",
			keys:  []string{"a", "b"},
			want:  map[string]Value{"a": Scalar("1"), "b": Scalar("2")},
		},
		{
			name:  "empty scalar is replaced",
			query: "a=&a=2",
			keys:  []string{"a"},
			want:  map[string]Value{"a": Scalar("2")},
		},
		{
			name:  "third occurrence appends",
			query: "a=1&a=2&a=3",
			keys:  []string{"a"},
			want:  map[string]Value{"a": List("1", "2", "3")},
		},
		{
			name:  "plain key after bracket list appends",
			query: "a[]=x&a=y",
			keys:  []string{"a"},
			want:  map[string]Value{"a": List("x", "y")},
		},
		{
			name:  "bracket key after scalar promotes",
			query: "a=1&a[]=2",
			keys:  []string{"a"},
			want:  map[string]Value{"a": List("1", "2")},
		},
		{
			name:  "flag inside list renders true",
			query: "a[]&a[]=x",
			keys:  []string{"a"},
			want:  map[string]Value{"a": List("true", "x")},
		},
		{
			name:  "value stops at second equals",
			query: "token=abc==&chipId=1&k=a=b",
			keys:  []string{"token", "chipId", "k"},
			want:  map[string]Value{"token": Scalar("abc"), "chipId": Scalar("1"), "k": Scalar("a")},
		},
		{
			name:  "first bracket group is stripped and indexes",
			query: "x[1][2]=v",
			keys:  []string{"x[2]"},
			want:  map[string]Value{"x[2]": {Kind: KindList, Items: []Element{{}, {Text: "v", Set: true}}}},
		},
		{
			name:  "numbered group then append",
			query: "x[1][]=v",
			keys:  []string{"x[]"},
			want:  map[string]Value{"x[]": List("v")},
		},
		{
			name:  "percent decoding",
			query: "from=2020-01-01%2012%3A00&bad=%zz",
			keys:  []string{"from", "bad"},
			want:  map[string]Value{"from": Scalar("2020-01-01 12:00"), "bad": Scalar("%zz")},
		},
		{
			name:  "non numeric bracket is a plain key",
			query: "a[x]=1",
			keys:  []string{"a[x]"},
			want:  map[string]Value{"a[x]": Scalar("1")},
		},
		{
			name:  "index beyond limit appends",
			query: "a[0]=x&a[999999]=y",
			keys:  []string{"a"},
			want:  map[string]Value{"a": List("x", "y")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.query)
			if keys := got.Keys(); !reflect.DeepEqual(keys, tt.keys) {
				t.Fatalf("Keys() = %q; want %q", keys, tt.keys)
			}
			for k, want := range tt.want {
				v, ok := got.Get(k)
				if !ok {
					t.Fatalf("Get(%q) missing", k)
				}
				if !reflect.DeepEqual(v, want) {
					t.Fatalf("Get(%q) = %#v; want %#v", k, v, want)
				}
			}
		})
	}
}

func TestParseExplicitIndexOverwrites(t *testing.T) {
	got := Parse("a[1]=x&a[1]=y")
	v, _ := got.Get("a")
	want := Value{Kind: KindList, Items: []Element{{}, {Text: "y", Set: true}}}
	if !reflect.DeepEqual(v, want) {
		t.Fatalf("Get(a) = %#v; want %#v", v, want)
	}
}

func TestFromURL(t *testing.T) {
	p, err := FromURL("https://pm.example.org/chart.html?chipId=abc&width=640#frag")
	if err != nil {
		t.Fatalf("FromURL() error = %v", err)
	}
	if got := p.Text("chipId"); got != "abc" {
		t.Fatalf("chipId = %q; want %q", got, "abc")
	}
	if got := p.PositiveInt("width", 800); got != 640 {
		t.Fatalf("width = %d; want 640", got)
	}

	if _, err := FromURL("http://[::1"); err == nil {
		t.Fatal("FromURL() = nil error; want parse error")
	}
}

func TestQueryOf(t *testing.T) {
	cases := map[string]string{
		"https://pm.example.org/chart.html?chipId=abc#top": "chipId=abc",
		"chart.html?chipId=1":                              "chipId=1",
		"/chart?chipId=1&width=300":                        "chipId=1&width=300",
		"?chipId=1":                                        "chipId=1",
		"chipId=1&width=300":                               "chipId=1&width=300",
		"src=http://x?y=1":                                 "src=http://x?y=1",
		"debug":                                            "debug",
		"https://pm.example.org/chart.html":                "",
		"":                                                 "",
	}
	for in, want := range cases {
		got, err := QueryOf(in)
		if err != nil || got != want {
			t.Errorf("QueryOf(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}

func TestPositiveInt(t *testing.T) {
	p := Parse("w=640&neg=-3&txt=wide&flag&list=1&list=2&zero=0")
	cases := map[string]int{"w": 640, "neg": 800, "txt": 800, "flag": 800, "list": 800, "zero": 800, "missing": 800}
	for key, want := range cases {
		if got := p.PositiveInt(key, 800); got != want {
			t.Errorf("PositiveInt(%q) = %d; want %d", key, got, want)
		}
	}
}

func TestValueString(t *testing.T) {
	sparse := Value{Kind: KindList, Items: []Element{{Text: "x", Set: true}, {}, {Text: "y", Set: true}}}
	cases := []struct {
		v    Value
		want string
	}{
		{Scalar("abc"), "abc"},
		{Flag(), "true"},
		{List("1", "2"), "1,2"},
		{sparse, "x,,y"},
	}
	for _, c := range cases {
		if got := c.v.String(); got != c.want {
			t.Errorf("%s String() = %q; want %q", c.v.Kind, got, c.want)
		}
	}
}

func TestParamsMarshalJSON(t *testing.T) {
	p := Parse("b=2&a[0]=x&a[2]=y&debug")
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	want := `{"b":"2","a":["x",null,"y"],"debug":true}`
	if string(data) != want {
		t.Fatalf("json = %s; want %s", data, want)
	}
}
