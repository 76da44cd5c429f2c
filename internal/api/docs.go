package api

const docsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no" />
  <title>Particulate Matter Chart API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
</head>
<body style="height: 100vh; margin: 0; position: relative;">
  <a href="/docs/feed" style="
    position: fixed;
    top: 12px;
    right: 16px;
    z-index: 9999;
    background: #161b22;
    border: 1px solid #30363d;
    border-radius: 6px;
    color: #58a6ff;
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
    font-size: 12px;
    font-weight: 500;
    padding: 5px 12px;
    text-decoration: none;
  ">Live Feed Docs</a>
  <elements-api
    apiDescriptionUrl="/openapi.json"
    router="hash"
    layout="sidebar"
    tryItCredentialsPolicy="same-origin"
    darkMode
  />
</body>
</html>`


const feedDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Live Feed - Particulate Matter Chart API</title>
  <style>
    body { margin: 0 auto; max-width: 760px; padding: 24px; background: #0d1117; color: #c9d1d9; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; line-height: 1.6; }
    code, pre { background: #161b22; border: 1px solid #30363d; border-radius: 6px; }
    code { padding: 1px 5px; }
    pre { padding: 12px; overflow-x: auto; }
    a { color: #58a6ff; }
  </style>
</head>
<body>
  <p><a href="/docs">&larr; REST API</a></p>
  <h1>Live Feed</h1>
  <p>Every chart resolved through <code>/chart</code>, <code>/api/v1/chart</code>,
  <code>/api/v1/chart/image</code> or <code>/api/v1/snapshots</code> is announced to
  feed subscribers. Slow subscribers miss events instead of blocking requests.</p>

  <h2>Server-sent events</h2>
  <pre>curl -N 'http://localhost:8080/api/v1/feed/sse?chips=abc,def'</pre>
  <p>Each event is named <code>chart</code>; <code>data</code> holds the JSON payload.</p>

  <h2>WebSocket</h2>
  <pre>websocat 'ws://localhost:8080/api/v1/feed/ws?chips=abc'</pre>
  <p>Each text frame holds one JSON payload. Messages sent by the client are ignored.</p>

  <h2>Filter</h2>
  <p><code>chips</code> is a comma-separated list of chip ids. Omit it to receive every chart.</p>

  <h2>Payload</h2>
  <pre>{
  "chip_id": "abc",
  "field": "PM10",
  "points": 2,
  "last": 10,
  "response_time_ms": 42,
  "query": "chipId=abc",
  "fetched_at": "2024-03-05T10:00:00Z"
}</pre>
</body>
</html>`
