package webmonitor

// indexHTML is served at / when no frontend directory provides index.html.
const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Zone Traffic Monitor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { margin: 0; font-family: system-ui, sans-serif; background: #111; color: #eee; }
        .app { max-width: 1400px; margin: 0 auto; padding: 16px; }
        .header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 16px; }
        .title { font-size: 22px; font-weight: 600; }
        .badge { padding: 4px 10px; border-radius: 12px; background: #444; font-size: 13px; }
        .badge.running { background: #2e7d32; }
        .grid { display: grid; grid-template-columns: 2fr 1fr; gap: 16px; }
        .panel { background: #1c1c1c; border-radius: 8px; padding: 14px; }
        .panel h2 { margin: 0 0 10px; font-size: 16px; }
        .controls { display: flex; gap: 8px; margin-bottom: 10px; }
        select, button { background: #333; color: #eee; border: 1px solid #555; border-radius: 4px; padding: 6px 10px; }
        button:hover { background: #444; }
        #video { width: 100%; border-radius: 4px; background: #000; }
        .metric { display: flex; justify-content: space-between; padding: 4px 0; border-bottom: 1px solid #2a2a2a; }
        .density-LOW { color: #4caf50; }
        .density-MEDIUM { color: #ff9800; }
        .density-HIGH { color: #f44336; }
        #error { color: #f44336; min-height: 18px; font-size: 13px; }
        table { width: 100%; border-collapse: collapse; font-size: 13px; }
        td, th { text-align: left; padding: 3px 4px; border-bottom: 1px solid #2a2a2a; }
    </style>
</head>
<body>
    <div class="app">
        <div class="header">
            <div class="title">Zone Traffic Monitor</div>
            <span class="badge" id="status-badge">Stopped</span>
        </div>

        <div class="grid">
            <div class="panel">
                <div class="controls">
                    <select id="video-select"></select>
                    <button type="button" id="btn-start">Start</button>
                    <button type="button" id="btn-stop">Stop</button>
                </div>
                <div id="error"></div>
                <img id="video" src="/video" alt="Live feed">
            </div>

            <div class="panel">
                <h2>Live Stats</h2>
                <div class="metric"><span>FPS</span><span id="fps">0</span></div>
                <div class="metric"><span>Counted</span><span id="total">0</span></div>
                <div class="metric"><span>On screen</span><span id="active">0</span></div>
                <div class="metric"><span>Density</span><span id="density" class="density-LOW">LOW</span></div>
                <h2 style="margin-top:16px;">Zone Counts</h2>
                <div id="zones"></div>
                <h2 style="margin-top:16px;">History</h2>
                <table>
                    <thead><tr><th>Time</th><th>Total</th></tr></thead>
                    <tbody id="history"></tbody>
                </table>
            </div>
        </div>
    </div>

    <script>
        const $ = (id) => document.getElementById(id);

        async function loadVideos() {
            const resp = await fetch('/videos');
            const videos = await resp.json();
            const select = $('video-select');
            select.innerHTML = '';
            for (const v of videos) {
                const opt = document.createElement('option');
                opt.value = v.filename;
                opt.textContent = v.has_zones ? v.label : v.label + ' (no zones)';
                opt.disabled = !v.has_zones;
                select.appendChild(opt);
            }
        }

        async function control(path) {
            $('error').textContent = '';
            const resp = await fetch(path, { method: 'POST' });
            const body = await resp.json();
            if (!resp.ok) {
                $('error').textContent = body.reason + ': ' + body.detail;
            }
        }

        $('btn-start').onclick = () => {
            const filename = $('video-select').value;
            if (filename) control('/start/' + encodeURIComponent(filename));
        };
        $('btn-stop').onclick = () => control('/stop');

        function render(stats) {
            const badge = $('status-badge');
            badge.textContent = stats.running ? 'Running: ' + stats.source : 'Stopped';
            badge.classList.toggle('running', stats.running);

            $('fps').textContent = stats.fps.toFixed(1);
            $('total').textContent = stats.total;
            $('active').textContent = stats.active_tracks;
            $('density').textContent = stats.density;
            $('density').className = 'density-' + stats.density;

            const zones = $('zones');
            zones.innerHTML = '';
            for (const label of Object.keys(stats.zone_counts).sort()) {
                const row = document.createElement('div');
                row.className = 'metric';
                row.innerHTML = '<span></span><span></span>';
                row.children[0].textContent = label;
                row.children[1].textContent = stats.zone_counts[label];
                zones.appendChild(row);
            }

            const history = $('history');
            history.innerHTML = '';
            for (const entry of stats.history.slice(-10).reverse()) {
                const tr = document.createElement('tr');
                tr.innerHTML = '<td></td><td></td>';
                tr.children[0].textContent = entry.time;
                tr.children[1].textContent = entry.total;
                history.appendChild(tr);
            }
        }

        const events = new EventSource('/stats/stream');
        events.onmessage = (e) => render(JSON.parse(e.data));

        loadVideos();
    </script>
</body>
</html>
`
