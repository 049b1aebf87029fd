package dockerfile

import (
	"strings"
	"testing"
)

var benchmarkSource = strings.Join([]string{
	"# syntax is ignored",
	"ARG VERSION=3.19",
	"FROM alpine:${VERSION} AS base",
	"ENV PATH=/usr/local/bin:$PATH LANG=C.UTF-8",
	"LABEL org.opencontainers.image.source=https://example.com/repo",
	"RUN apk add --no-cache \\",
	"    ca-certificates \\",
	"    curl",
	"",
	"FROM base AS build",
	"WORKDIR /src",
	"COPY --chown=nobody:nobody . .",
	"RUN go build -o /out/app ./cmd/app",
	"",
	"FROM alpine:${VERSION}",
	"COPY --from=build /out/app /usr/local/bin/app",
	"EXPOSE 8080/tcp",
	"USER nobody:nobody",
	"HEALTHCHECK --interval=30s --timeout=3s CMD app healthz",
	`ENTRYPOINT ["app"]`,
	`CMD ["serve"]`,
	"",
}, "\n")

func BenchmarkParse(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := Parse(benchmarkSource); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseLarge(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString(benchmarkSource)
	}
	source := sb.String()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := Parse(source); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkStages(b *testing.B) {
	d, err := Parse(benchmarkSource)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		d.Stages()
	}
}

func BenchmarkSplice(b *testing.B) {
	d, err := Parse(benchmarkSource)
	if err != nil {
		b.Fatal(err)
	}
	from := d.Instructions[1].(*FromInstruction)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, _, err := Splice(d.Content, []Edit{{Span: from.Image.Span, Text: "alpine:edge"}}); err != nil {
			b.Fatal(err)
		}
	}
}
