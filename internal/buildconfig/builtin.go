package buildconfig

import f "github.com/wolfeidau/fragpack/internal/fragment"

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"

	PresetAnalytics = "analytics"
	PresetCompress  = "compress"
	PresetManifest  = "manifest"
)

// Base is the fragment every build starts from.
func Base(mode string) f.Fragment {
	return f.Map(
		f.E("mode", f.String(mode)),
		f.E("entry", f.String("src/frontend/index.js")),
		f.E("outdir", f.String("dist")),
		f.E("publicPath", f.String("/")),
		f.E("minify", f.Bool(true)),
		f.E("sourcemap", f.String("none")),
		f.E("metafile", f.Bool(false)),
		f.E("rules", f.Seq(
			rule(".png", "file"),
			rule(".svg", "file"),
			rule(".woff2", "file"),
		)),
		f.E("plugins", f.Seq(
			plugin("html",
				f.E("template", f.String("src/frontend/assets/index.html")),
				f.E("inject", f.String("body")),
				f.E("filename", f.String("index.html")),
			),
			plugin("copy",
				f.E("patterns", f.Seq(
					f.Map(f.E("from", f.String("src/frontend/assets/favicon.png"))),
				)),
			),
		)),
	)
}

// Development enables the dev server, live reload and readable output.
func Development(string) f.Fragment {
	return f.Map(
		f.E("minify", f.Bool(false)),
		f.E("sourcemap", f.String("inline")),
		f.E("define", f.Map(
			f.E("process.env.NODE_ENV", f.String(`"development"`)),
		)),
		f.E("rules", f.Seq(
			rule(".css", "css"),
		)),
		f.E("plugins", f.Seq(
			plugin("hmr"),
		)),
		f.E("devServer", f.Map(
			f.E("host", f.String("localhost")),
			f.E("port", f.Int(8080)),
			f.E("contentBase", f.String("./src")),
			f.E("historyApiFallback", f.Bool(true)),
			f.E("inline", f.Bool(true)),
			f.E("stats", f.String("errors-only")),
			f.E("hot", f.Bool(true)),
		)),
	)
}

// Production adds nothing to the base fragment.
func Production(string) f.Fragment {
	return f.Empty()
}

// Analytics records build metadata and reports bundle composition.
func Analytics(string) f.Fragment {
	return f.Map(
		f.E("metafile", f.Bool(true)),
		f.E("sourcemap", f.String("linked")),
		f.E("plugins", f.Seq(
			plugin("analyze", f.E("verbose", f.Bool(false))),
		)),
	)
}

// Compress writes gzip siblings for emitted assets. Development builds use a
// faster compression level.
func Compress(mode string) f.Fragment {
	level := 9
	if mode == ModeDevelopment {
		level = 1
	}
	return f.Map(
		f.E("plugins", f.Seq(
			plugin("compress",
				f.E("level", f.Int(level)),
				f.E("minSize", f.Int(1024)),
			),
		)),
	)
}

// Manifest writes manifest.json describing every emitted file.
func Manifest(string) f.Fragment {
	return f.Map(
		f.E("plugins", f.Seq(
			plugin("manifest", f.E("filename", f.String("manifest.json"))),
		)),
	)
}

func rule(test, loader string) f.Fragment {
	return f.Map(f.E("test", f.String(test)), f.E("loader", f.String(loader)))
}

func plugin(name string, options ...f.Entry) f.Fragment {
	return f.Map(f.E("name", f.String(name)), f.E("options", f.Map(options...)))
}
